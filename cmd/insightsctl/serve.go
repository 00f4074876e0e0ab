package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-insights/components/poller"
	"github.com/goliatone/go-insights/components/preview"
	"github.com/goliatone/go-insights/components/session"
)

type serveCmd struct {
	Addr string `help:"Listen address (defaults to preview_addr)."`
}

func (cmd *serveCmd) Run(ctx context.Context, g *Globals) error {
	a, err := g.app()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.session.Start(ctx); err != nil {
		a.log.Warn("stored session rejected", "error", err)
	}

	list, err := a.datasetList()
	if err != nil {
		return err
	}
	views, err := preview.NewViews(ctx, a.dashboardView)
	if err != nil {
		return err
	}
	renderer, err := preview.NewTemplateRenderer()
	if err != nil {
		return err
	}
	pages, err := preview.NewPages(preview.PagesOptions{
		Session:        a.session,
		Datasets:       list,
		Views:          views,
		Renderer:       renderer,
		Cards:          a.htmlCards(),
		Logger:         a.log,
		DatasetRefresh: a.cfg.DatasetInterval.Std(),
		InsightRefresh: a.cfg.InsightInterval.Std(),
	})
	if err != nil {
		return err
	}

	server := router.NewFiberAdapter()
	if err := preview.Register(preview.Config[*fiber.App]{
		Router: server.Router(),
		Pages:  pages,
	}); err != nil {
		return err
	}

	states, unsubscribe := a.session.Subscribe()
	defer unsubscribe()
	if a.session.State().Authenticated() {
		list.Start(ctx)
	}
	go followSession(ctx, states, list, views)

	addr := cmd.Addr
	if addr == "" {
		addr = a.cfg.PreviewAddr
	}
	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(addr)
	}()
	a.log.Info("preview server started", "addr", addr)
	if a.out.text() {
		a.out.line("Preview running on http://%s (Ctrl+C to stop)", addr)
	}

	select {
	case err := <-errc:
		views.Close()
		list.Close()
		return err
	case <-ctx.Done():
	}
	views.Close()
	list.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// followSession stops background polling once the session ends.
func followSession(ctx context.Context, states <-chan session.State, list *poller.DatasetList, views *preview.Views) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if state.Status == session.StatusAnonymous {
				views.Close()
				list.Stop()
			}
		}
	}
}
