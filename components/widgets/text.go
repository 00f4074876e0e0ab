package widgets

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

const maxTextRows = 20

// TextRenderer renders widgets as plain text blocks for terminals.
type TextRenderer struct {
	// MaxRows limits chart table rows; zero uses 20.
	MaxRows   int
	Formatter *Formatter
}

var _ Strategy[string] = TextRenderer{}

// Render renders one widget.
func (r TextRenderer) Render(w Widget) string {
	return Dispatch[string](w, r)
}

func (r TextRenderer) KPI(k KPI, formatted string) string {
	if r.Formatter != nil {
		formatted = r.Formatter.Format(k.Value, k.Format)
	}
	return fmt.Sprintf("%s\n  %s\n", k.Label(), formatted)
}

func (r TextRenderer) Line(c Chart) string    { return r.table(c, "line") }
func (r TextRenderer) Bar(c Chart) string     { return r.table(c, "bar") }
func (r TextRenderer) Scatter(c Chart) string { return r.table(c, "scatter") }

func (r TextRenderer) Placeholder(p Placeholder) string {
	if p.Title == "" {
		return fmt.Sprintf("[%s]\n", p.Message)
	}
	return fmt.Sprintf("%s\n  [%s]\n", p.Title, p.Message)
}

func (r TextRenderer) table(c Chart, style string) string {
	limit := r.MaxRows
	if limit <= 0 {
		limit = maxTextRows
	}
	points := c.Points()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s [%s]\n", c.Title(), style)
	tw := tabwriter.NewWriter(&buf, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  %s\t%s\n", c.XKey(), c.YKey())
	for i, p := range points {
		if i == limit {
			fmt.Fprintf(tw, "  … %d more\t\n", len(points)-limit)
			break
		}
		fmt.Fprintf(tw, "  %s\t%s\n", p.Label, defaultFormatter.grouped(p.Y))
	}
	_ = tw.Flush()
	return buf.String()
}

// RenderAll renders widgets separated by blank lines.
func (r TextRenderer) RenderAll(ws []Widget) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = r.Render(w)
	}
	return strings.Join(parts, "\n")
}
