package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ettle/strcase"

	"github.com/goliatone/go-insights/components/poller"
	"github.com/goliatone/go-insights/components/preview"
	"github.com/goliatone/go-insights/components/widgets"
	"github.com/goliatone/go-insights/pkg/client"
)

type dashboardCmd struct {
	DatasetID string `arg:"" name:"dataset-id" help:"Dataset to open."`
	Wait      bool   `help:"Wait until insights are generated."`
	Save      bool   `help:"Persist the generated dashboard on the server."`
	HTML      string `name:"html" type:"path" placeholder:"FILE" help:"Also write an HTML export to FILE (or into the directory FILE)."`
}

func (cmd *dashboardCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if err := a.requireReady(ctx, cmd.DatasetID); err != nil {
		return err
	}
	view, err := a.dashboardView(cmd.DatasetID)
	if err != nil {
		return err
	}
	defer view.Close()

	updates, cancel := view.Subscribe()
	defer cancel()
	if err := view.Activate(ctx); err != nil {
		return userError(err)
	}
	if cmd.Save {
		ref, err := a.api.CreateDashboard(ctx, cmd.DatasetID)
		if err != nil {
			a.session.HandleError(err)
			return userError(err)
		}
		fmt.Fprintf(os.Stderr, "Saved dashboard %s\n", ref.ID)
	}
	if cmd.Wait {
		if a.out.text() {
			fmt.Fprintln(os.Stderr, "Waiting for insights...")
		}
		if err := a.waitForInsights(ctx, view, updates); err != nil {
			return err
		}
	}

	snap := view.Snapshot()
	if a.out.text() {
		if err := a.out.dashboard(*snap.Dashboard); err != nil {
			return err
		}
		if err := a.out.insights(snap.Insights, snap.InsightsLoading); err != nil {
			return err
		}
	} else if _, err := a.out.structured(map[string]any{
		"dashboard":        snap.Dashboard,
		"insights":         snap.Insights,
		"insights_loading": snap.InsightsLoading,
	}); err != nil {
		return err
	}

	if cmd.HTML == "" {
		return nil
	}
	path, err := a.exportDashboard(cmd.HTML, snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

// requireReady checks the dataset finished processing before its dashboard
// is opened.
func (a *app) requireReady(ctx context.Context, datasetID string) error {
	ds, err := a.api.GetDataset(ctx, datasetID)
	if err != nil {
		a.session.HandleError(err)
		return userError(err)
	}
	if ds.Status != client.StatusReady {
		return fmt.Errorf("insightsctl: %w (status %s)", poller.ErrDatasetNotReady, ds.Status)
	}
	return nil
}

func (a *app) dashboardView(datasetID string) (*poller.DashboardView, error) {
	return poller.NewDashboardView(datasetID, poller.DashboardViewOptions{
		API:      a.api,
		Interval: a.cfg.InsightInterval.Std(),
		Logger:   a.log,
		OnError:  func(err error) { a.session.HandleError(err) },
	})
}

// waitForInsights returns once insights arrived, the view stopped or the
// user interrupted. A lost session is reported as errNotSignedIn.
func (a *app) waitForInsights(ctx context.Context, view *poller.DashboardView, updates <-chan poller.ViewSnapshot) error {
	for {
		if !a.session.State().Authenticated() {
			return errNotSignedIn
		}
		snap := view.Snapshot()
		if snap.Insights != nil || !snap.InsightsLoading || !snap.Active {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
		}
	}
}

func (a *app) htmlCards() *widgets.HTMLRenderer {
	opts := []widgets.HTMLOption{widgets.WithHTMLLogger(a.log)}
	if a.cfg.EChartsAssetsHost != "" {
		opts = append(opts, widgets.WithChartAssetsHost(a.cfg.EChartsAssetsHost))
	}
	return widgets.NewHTMLRenderer(opts...)
}

func (a *app) exportDashboard(target string, snap poller.ViewSnapshot) (string, error) {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, exportName(snap))
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("insightsctl: %w", err)
	}
	renderer, err := preview.NewTemplateRenderer()
	if err != nil {
		return "", err
	}
	file, err := os.Create(target) //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("insightsctl: create %s: %w", target, err)
	}
	defer file.Close()
	if err := preview.ExportDashboard(file, renderer, a.htmlCards(), snap); err != nil {
		return "", fmt.Errorf("insightsctl: render dashboard: %w", err)
	}
	return target, nil
}

func exportName(snap poller.ViewSnapshot) string {
	title := snap.DatasetID
	if snap.Dashboard != nil && snap.Dashboard.Title != "" {
		title = snap.Dashboard.Title
	}
	name := strcase.ToKebab(title)
	if name == "" {
		name = "dashboard"
	}
	return name + ".html"
}
