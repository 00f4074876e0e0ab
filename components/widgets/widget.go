package widgets

import (
	"strings"

	"github.com/goliatone/go-insights/pkg/client"
)

// Kind tags a dashboard widget.
const (
	KindKPI   = "kpi"
	KindChart = "chart"
)

// ChartType tags a chart widget's plotting strategy.
type ChartType string

const (
	ChartLine    ChartType = "line"
	ChartBar     ChartType = "bar"
	ChartScatter ChartType = "scatter"
)

// Format is a KPI display hint.
type Format string

const (
	FormatCurrency   Format = "currency"
	FormatPercentage Format = "percentage"
	FormatNumber     Format = "number"
)

// Widget is one of KPI, Chart or Unknown.
type Widget interface {
	WidgetID() string
	Kind() string
	widget()
}

// KPI is a single metric tile.
type KPI struct {
	ID     string
	Metric string
	Value  *float64
	Format Format
}

func (k KPI) WidgetID() string { return k.ID }
func (KPI) Kind() string       { return KindKPI }
func (KPI) widget()            {}

// Label returns the metric name, defaulting to "Metric".
func (k KPI) Label() string {
	if strings.TrimSpace(k.Metric) == "" {
		return "Metric"
	}
	return k.Metric
}

// Chart is a plot over tabular rows. Type keeps unrecognized tags verbatim.
type Chart struct {
	ID          string
	Type        ChartType
	X           string
	Y           string
	Aggregation string
	Rows        []map[string]any
}

func (c Chart) WidgetID() string { return c.ID }
func (Chart) Kind() string       { return KindChart }
func (Chart) widget()            {}

// XKey returns the row key plotted on the x axis.
func (c Chart) XKey() string {
	if c.X == "" {
		return "x"
	}
	return c.X
}

// YKey returns the row key plotted on the y axis.
func (c Chart) YKey() string {
	if c.Y == "" {
		return "y"
	}
	return c.Y
}

// Title is "<y> by <x>", followed by the aggregation in parentheses.
func (c Chart) Title() string {
	title := c.YKey() + " by " + c.XKey()
	if c.Aggregation != "" {
		title += " (" + c.Aggregation + ")"
	}
	return title
}

// Unknown carries a widget whose kind is not recognized.
type Unknown struct {
	ID      string
	RawKind string
}

func (u Unknown) WidgetID() string { return u.ID }
func (u Unknown) Kind() string     { return u.RawKind }
func (Unknown) widget()            {}

// Decode interprets the loosely typed payload.
func Decode(p client.WidgetPayload) Widget {
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case KindKPI:
		kpi := KPI{ID: p.ID, Metric: p.Metric, Value: p.Value}
		if p.Format != nil {
			kpi.Format = Format(strings.ToLower(*p.Format))
		}
		return kpi
	case KindChart:
		chart := Chart{
			ID:   p.ID,
			Type: ChartType(p.ChartType),
			X:    p.X,
			Y:    p.Y,
			Rows: p.Data,
		}
		if p.Aggregation != nil {
			chart.Aggregation = *p.Aggregation
		}
		return chart
	default:
		return Unknown{ID: p.ID, RawKind: p.Type}
	}
}

// DecodeAll decodes a dashboard's widgets in order.
func DecodeAll(payloads []client.WidgetPayload) []Widget {
	out := make([]Widget, len(payloads))
	for i, p := range payloads {
		out[i] = Decode(p)
	}
	return out
}
