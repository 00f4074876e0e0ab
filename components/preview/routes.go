package preview

import (
	"errors"
	"net/http"

	router "github.com/goliatone/go-router"
)

// Config wires go-router with the preview pages.
type Config[T any] struct {
	Router router.Router[T]
	Pages  *Pages
	Routes RouteConfig
}

// RouteConfig customizes the preview endpoint paths. Pages link to the
// default HTML routes, so only the JSON paths are safe to move.
type RouteConfig struct {
	Home         string
	Dashboard    string
	APIDatasets  string
	APIDashboard string
	Refresh      string
	Logout       string
}

// Register mounts the preview routes (HTML and JSON) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("preview: router is required")
	}
	if cfg.Pages == nil {
		return errors.New("preview: pages are required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	pages := cfg.Pages
	r := cfg.Router

	r.Get(routes.Home, router.WrapHandler(func(ctx router.Context) error {
		page, err := pages.Home(ctx.Context())
		if err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return sendPage(ctx, page)
	}))

	r.Get(routes.Dashboard, router.WrapHandler(func(ctx router.Context) error {
		id := ctx.Param("id")
		if id == "" {
			return respondError(ctx, http.StatusBadRequest, errors.New("dataset id is required"))
		}
		page, err := pages.Dashboard(ctx.Context(), id, ctx.Query("reload") != "")
		if err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return sendPage(ctx, page)
	}))

	r.Get(routes.APIDatasets, router.WrapHandler(func(ctx router.Context) error {
		status, payload := pages.DatasetsPayload()
		return ctx.JSON(status, payload)
	}))

	r.Get(routes.APIDashboard, router.WrapHandler(func(ctx router.Context) error {
		status, payload := pages.DashboardPayload(ctx.Param("id"))
		return ctx.JSON(status, payload)
	}))

	r.Post(routes.Refresh, router.WrapHandler(func(ctx router.Context) error {
		pages.RefreshDatasets(ctx.Context())
		status, payload := pages.DatasetsPayload()
		return ctx.JSON(status, payload)
	}))

	r.Post(routes.Logout, router.WrapHandler(func(ctx router.Context) error {
		page, err := pages.Logout()
		if err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		return sendPage(ctx, page)
	}))

	return nil
}

func sendPage(ctx router.Context, page Page) error {
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	ctx.Status(page.Status)
	return ctx.Send(page.Body)
}

func respondError(ctx router.Context, status int, err error) error {
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Home == "" {
		routes.Home = "/"
	}
	if routes.Dashboard == "" {
		routes.Dashboard = "/dashboard/:id"
	}
	if routes.APIDatasets == "" {
		routes.APIDatasets = "/api/datasets"
	}
	if routes.APIDashboard == "" {
		routes.APIDashboard = "/api/dashboard/:id"
	}
	if routes.Refresh == "" {
		routes.Refresh = "/api/datasets/refresh"
	}
	if routes.Logout == "" {
		routes.Logout = "/logout"
	}
	return routes
}
