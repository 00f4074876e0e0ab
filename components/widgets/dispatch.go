package widgets

import "fmt"

// Reason explains why a placeholder was rendered instead of a widget.
type Reason string

const (
	ReasonNoData           Reason = "no_data"
	ReasonUnsupportedChart Reason = "unsupported_chart"
	ReasonUnsupportedKind  Reason = "unsupported_widget"
)

// Placeholder is the visible fallback for widgets that cannot be plotted.
type Placeholder struct {
	WidgetID string
	Title    string
	Message  string
	Reason   Reason
}

// Strategy renders each widget variant into T.
type Strategy[T any] interface {
	KPI(k KPI, formatted string) T
	Line(c Chart) T
	Bar(c Chart) T
	Scatter(c Chart) T
	Placeholder(p Placeholder) T
}

// Dispatch routes w to the matching strategy method. Every input yields a
// value: unknown tags and empty charts become placeholders.
func Dispatch[T any](w Widget, s Strategy[T]) T {
	switch v := w.(type) {
	case KPI:
		return s.KPI(v, FormatValue(v.Value, v.Format))
	case Chart:
		if len(v.Rows) == 0 {
			return s.Placeholder(Placeholder{
				WidgetID: v.ID,
				Title:    v.Title(),
				Message:  "No data available",
				Reason:   ReasonNoData,
			})
		}
		switch v.Type {
		case ChartLine:
			return s.Line(v)
		case ChartBar:
			return s.Bar(v)
		case ChartScatter:
			return s.Scatter(v)
		default:
			return s.Placeholder(Placeholder{
				WidgetID: v.ID,
				Title:    v.Title(),
				Message:  fmt.Sprintf("Unsupported chart type: %s", v.Type),
				Reason:   ReasonUnsupportedChart,
			})
		}
	case Unknown:
		return s.Placeholder(Placeholder{
			WidgetID: v.ID,
			Message:  fmt.Sprintf("Unsupported widget type: %s", v.RawKind),
			Reason:   ReasonUnsupportedKind,
		})
	case *KPI:
		if v != nil {
			return Dispatch[T](*v, s)
		}
	case *Chart:
		if v != nil {
			return Dispatch[T](*v, s)
		}
	case *Unknown:
		if v != nil {
			return Dispatch[T](*v, s)
		}
	}
	return s.Placeholder(Placeholder{
		Message: "Unsupported widget type: ",
		Reason:  ReasonUnsupportedKind,
	})
}
