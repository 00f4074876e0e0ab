package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-insights/components/widgets"
	"github.com/goliatone/go-insights/pkg/client"
)

type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string) (*printer, error) {
	switch format {
	case "", "text":
		format = "text"
	case "yaml", "json":
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &printer{format: format, w: os.Stdout}, nil
}

func (p *printer) text() bool {
	return p.format == "text"
}

// structured writes v as YAML or JSON. It reports false in text mode.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) profile(u client.UserProfile, stats bool) error {
	if ok, err := p.structured(u); ok {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", u.ID)
	fmt.Fprintf(tw, "Email\t%s\n", u.Email)
	if name := u.DisplayName(); name != "" {
		fmt.Fprintf(tw, "Name\t%s\n", name)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Member since\t%s\n", u.CreatedAt.Format("2006-01-02"))
	}
	if stats {
		fmt.Fprintf(tw, "Datasets uploaded\t%d\n", u.Stats.DatasetsUploaded)
		fmt.Fprintf(tw, "Dashboards created\t%d\n", u.Stats.DashboardsCreated)
		fmt.Fprintf(tw, "Insights generated\t%d\n", u.Stats.InsightsGenerated)
	}
	return tw.Flush()
}

func (p *printer) datasets(datasets []client.Dataset) error {
	if ok, err := p.structured(datasets); ok {
		return err
	}
	if len(datasets) == 0 {
		p.line("No datasets yet.")
		return nil
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS")
	for _, ds := range datasets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ds.ID, ds.Filename, ds.Status)
	}
	return tw.Flush()
}

func (p *printer) dashboard(dash client.Dashboard) error {
	if ok, err := p.structured(dash); ok {
		return err
	}
	p.line("%s", dash.Title)
	p.line("%s", strings.Repeat("=", len(dash.Title)))
	p.line("")
	text := widgets.TextRenderer{}
	p.line("%s", text.RenderAll(widgets.DecodeAll(dash.Widgets)))
	return nil
}

func (p *printer) insights(set *client.InsightSet, loading bool) error {
	if !p.text() {
		if set == nil {
			_, err := p.structured(map[string]any{"insights_loading": loading})
			return err
		}
		_, err := p.structured(set)
		return err
	}
	p.line("Insights")
	p.line("--------")
	if set == nil {
		if loading {
			p.line("Generating insights...")
		} else {
			p.line("Insights are not available.")
		}
		return nil
	}
	if summary := set.SummaryText(); summary != "" {
		p.line("%s", summary)
		p.line("")
	}
	if len(set.Insights) == 0 {
		p.line("No insights for this dataset.")
	}
	for _, insight := range set.Insights {
		p.line("[%s] %s", widgets.InsightTone(insight.Type).Label, insight.Message)
	}
	return nil
}
