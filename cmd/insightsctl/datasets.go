package main

import (
	"context"
	"strings"

	"github.com/goliatone/go-insights/components/commands"
	"github.com/goliatone/go-insights/components/poller"
	"github.com/goliatone/go-insights/pkg/client"
)

type datasetsCmd struct {
	Status string `help:"Only list datasets with this status (PROCESSING, READY or FAILED)."`
	Watch  bool   `short:"w" help:"Keep polling while any dataset is processing."`
}

func (cmd *datasetsCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	if !cmd.Watch {
		datasets, err := commands.NewDatasetsQuery(a.api, a.session).Query(ctx, commands.DatasetsRequest{
			Status: client.DatasetStatus(strings.ToUpper(cmd.Status)),
		})
		if err != nil {
			return userError(err)
		}
		return a.out.datasets(datasets)
	}
	list, err := a.datasetList()
	if err != nil {
		return err
	}
	defer list.Close()
	return a.watchDatasets(ctx, list, func(snap poller.DatasetSnapshot) bool {
		return !snap.Processing()
	})
}

type uploadCmd struct {
	File  string `arg:"" type:"existingfile" help:"Dataset file (.csv, .xls, .xlsx, .json)."`
	Watch bool   `short:"w" help:"Wait until the uploaded dataset finishes processing."`
}

func (cmd *uploadCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	list, err := a.datasetList()
	if err != nil {
		return err
	}
	defer list.Close()

	var created client.Dataset
	upload := commands.NewUploadDatasetCommand(list, a.session, commands.NewLogTelemetry(a.log))
	if err := upload.Execute(ctx, commands.UploadDatasetInput{Path: cmd.File, Result: &created}); err != nil {
		return userError(err)
	}
	if a.out.text() {
		a.out.line("Uploaded %s as %s (%s).", created.Filename, created.ID, created.Status)
	} else if _, err := a.out.structured(created); err != nil {
		return err
	}
	if !cmd.Watch {
		return nil
	}
	err = a.watchDatasets(ctx, list, func(snap poller.DatasetSnapshot) bool {
		ds, ok := snap.Find(created.ID)
		return ok && !ds.Status.Transitional()
	})
	if err != nil {
		return err
	}
	if route, err := list.Open(created.ID); err == nil && a.out.text() {
		a.out.line("Ready: run insightsctl dashboard %s (preview route %s).", created.ID, route)
	}
	return nil
}

func (a *app) datasetList() (*poller.DatasetList, error) {
	return poller.NewDatasetList(poller.DatasetListOptions{
		API:      a.api,
		Interval: a.cfg.DatasetInterval.Std(),
		Logger:   a.log,
		OnError:  func(err error) { a.session.HandleError(err) },
	})
}

// watchDatasets prints every snapshot until done reports true, the session
// ends or ctx is cancelled.
func (a *app) watchDatasets(ctx context.Context, list *poller.DatasetList, done func(poller.DatasetSnapshot) bool) error {
	updates, cancel := list.Subscribe()
	defer cancel()
	list.Start(ctx)
	defer list.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if !a.session.State().Authenticated() {
				return errNotSignedIn
			}
			if snap.Err != nil {
				if !snap.Loaded {
					return userError(snap.Err)
				}
				a.log.Warn("dataset refresh failed", "error", snap.Err)
			}
			if !snap.Loaded {
				continue
			}
			if err := a.out.datasets(snap.Datasets); err != nil {
				return err
			}
			if done(snap) || snap.State != poller.StatePolling {
				return nil
			}
			if a.out.text() {
				a.out.line("Processing... next check in %s.", a.cfg.DatasetInterval)
			}
		}
	}
}
