package preview

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/goliatone/go-insights/components/poller"
	"github.com/goliatone/go-insights/components/session"
	"github.com/goliatone/go-insights/components/widgets"
	"github.com/goliatone/go-insights/internal/logger"
	"github.com/goliatone/go-insights/pkg/client"
)

const (
	templateHome      = "home.html"
	templateDashboard = "dashboard.html"
	templateSignIn    = "signin.html"
)

// SessionSource is the session surface the pages read.
type SessionSource interface {
	State() session.State
	Logout()
}

// DatasetSource is the dataset list surface the pages read.
type DatasetSource interface {
	Snapshot() poller.DatasetSnapshot
	Refresh(ctx context.Context)
}

// PagesOptions wires the pages to the running components.
type PagesOptions struct {
	Session  SessionSource
	Datasets DatasetSource
	Views    *Views
	Renderer Renderer
	Cards    *widgets.HTMLRenderer
	Logger   *logger.Logger
	// DatasetRefresh and InsightRefresh drive the meta-refresh while polling.
	DatasetRefresh time.Duration
	InsightRefresh time.Duration
}

// Pages builds the HTML and JSON responses of the preview server.
type Pages struct {
	session        SessionSource
	datasets       DatasetSource
	views          *Views
	renderer       Renderer
	cards          *widgets.HTMLRenderer
	log            *logger.Logger
	datasetRefresh int
	insightRefresh int
}

// Page is a rendered response.
type Page struct {
	Status int
	Body   []byte
}

// NewPages validates options and builds the page set.
func NewPages(opts PagesOptions) (*Pages, error) {
	if opts.Session == nil {
		return nil, errors.New("preview: session is required")
	}
	if opts.Datasets == nil {
		return nil, errors.New("preview: dataset list is required")
	}
	if opts.Views == nil {
		return nil, errors.New("preview: views are required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("preview: renderer is required")
	}
	cards := opts.Cards
	if cards == nil {
		cards = widgets.NewHTMLRenderer(widgets.WithHTMLLogger(opts.Logger))
	}
	if opts.DatasetRefresh <= 0 {
		opts.DatasetRefresh = poller.DefaultDatasetInterval
	}
	if opts.InsightRefresh <= 0 {
		opts.InsightRefresh = poller.DefaultInsightInterval
	}
	return &Pages{
		session:        opts.Session,
		datasets:       opts.Datasets,
		views:          opts.Views,
		renderer:       opts.Renderer,
		cards:          cards,
		log:            logger.OrNop(opts.Logger),
		datasetRefresh: seconds(opts.DatasetRefresh),
		insightRefresh: seconds(opts.InsightRefresh),
	}, nil
}

// Home renders the dataset list.
func (p *Pages) Home(ctx context.Context) (Page, error) {
	state := p.session.State()
	if !state.Authenticated() {
		return p.signIn()
	}
	snap := p.datasets.Snapshot()
	data := map[string]any{"title": "Datasets"}
	withUser(data, state)
	data["datasets"] = datasetRows(snap.Datasets)
	data["loaded"] = snap.Loaded
	data["empty"] = snap.Loaded && len(snap.Datasets) == 0
	data["polling"] = snap.Processing()
	data["refresh_seconds"] = refreshWhen(!snap.Loaded || snap.Processing(), p.datasetRefresh)
	data["error"] = client.Message(snap.Err)
	data["updated_at"] = formatTime(snap.UpdatedAt)
	return p.render(http.StatusOK, templateHome, data)
}

// Dashboard opens the view for datasetID and renders its current snapshot.
// reload refetches the layout without requesting generation again.
func (p *Pages) Dashboard(ctx context.Context, datasetID string, reload bool) (Page, error) {
	state := p.session.State()
	if !state.Authenticated() {
		return p.signIn()
	}
	view, err := p.views.Open(datasetID)
	if view == nil {
		return Page{}, err
	}
	if err != nil {
		p.log.Debug("dashboard load failed", "dataset_id", datasetID, "error", err)
	}
	if reload && err == nil {
		if rerr := view.Reload(ctx); rerr != nil {
			p.log.Debug("dashboard reload failed", "dataset_id", datasetID, "error", rerr)
		}
	}
	data := dashboardData(p.cards, view.Snapshot(), p.insightRefresh)
	withUser(data, state)
	return p.render(http.StatusOK, templateDashboard, data)
}

// ExportDashboard renders snap as a standalone document, without
// meta-refresh or session chrome.
func ExportDashboard(w io.Writer, renderer Renderer, cards *widgets.HTMLRenderer, snap poller.ViewSnapshot) error {
	if cards == nil {
		cards = widgets.NewHTMLRenderer()
	}
	_, err := renderer.Render(templateDashboard, dashboardData(cards, snap, 0), w)
	return err
}

// Logout ends the session, closes the active view and renders the
// signed-out page.
func (p *Pages) Logout() (Page, error) {
	p.views.Close()
	p.session.Logout()
	return p.render(http.StatusOK, templateSignIn, signInData("Signed out"))
}

// RefreshDatasets fetches the dataset list once now.
func (p *Pages) RefreshDatasets(ctx context.Context) {
	if p.session.State().Authenticated() {
		p.datasets.Refresh(ctx)
	}
}

// DatasetsPayload is the JSON body of /api/datasets.
func (p *Pages) DatasetsPayload() (int, any) {
	if !p.session.State().Authenticated() {
		return http.StatusUnauthorized, errorPayload(client.ErrUnauthenticated)
	}
	snap := p.datasets.Snapshot()
	payload := map[string]any{
		"datasets": snap.Datasets,
		"loaded":   snap.Loaded,
		"polling":  snap.Processing(),
		"state":    snap.State.String(),
	}
	if snap.Err != nil {
		payload["error"] = client.Message(snap.Err)
	}
	if !snap.UpdatedAt.IsZero() {
		payload["updated_at"] = snap.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return http.StatusOK, payload
}

// DashboardPayload is the JSON body of /api/dashboard/:id. Only the active
// view is reported; the endpoint never activates one.
func (p *Pages) DashboardPayload(datasetID string) (int, any) {
	if !p.session.State().Authenticated() {
		return http.StatusUnauthorized, errorPayload(client.ErrUnauthenticated)
	}
	view := p.views.Active()
	if view == nil || view.DatasetID() != datasetID {
		return http.StatusNotFound, map[string]string{"error": "dashboard view is not open"}
	}
	snap := view.Snapshot()
	payload := map[string]any{
		"dataset_id":       snap.DatasetID,
		"active":           snap.Active,
		"phase":            snap.Phase.String(),
		"dashboard":        snap.Dashboard,
		"insights":         snap.Insights,
		"insights_loading": snap.InsightsLoading,
	}
	if snap.Err != nil {
		payload["error"] = client.Message(snap.Err)
	}
	return http.StatusOK, payload
}

func dashboardData(renderer *widgets.HTMLRenderer, snap poller.ViewSnapshot, refresh int) map[string]any {
	title := "Dashboard"
	if snap.Dashboard != nil && snap.Dashboard.Title != "" {
		title = snap.Dashboard.Title
	}
	data := map[string]any{"title": title}
	data["dataset_id"] = snap.DatasetID
	data["phase"] = snap.Phase.String()
	data["loading"] = snap.Phase == poller.PhaseLoading
	data["failed"] = snap.Phase == poller.PhaseError
	data["error"] = ""
	if snap.Err != nil {
		data["error"] = client.Message(snap.Err)
	}
	cards := []map[string]any{}
	if snap.Dashboard != nil {
		for _, card := range renderer.Cards(widgets.DecodeAll(snap.Dashboard.Widgets)) {
			cards = append(cards, cardView(card))
		}
	}
	data["cards"] = cards
	data["insights_loading"] = snap.InsightsLoading
	data["insights"] = insightRows(snap.Insights)
	data["summary"] = ""
	if snap.Insights != nil {
		data["summary"] = snap.Insights.SummaryText()
	}
	data["refresh_seconds"] = refreshWhen(snap.Active && (snap.InsightsLoading || snap.Phase == poller.PhaseLoading), refresh)
	return data
}

func withUser(data map[string]any, state session.State) {
	if state.User == nil {
		return
	}
	data["user"] = map[string]any{
		"name":    state.User.DisplayName(),
		"email":   state.User.Email,
		"initial": state.User.Initial(),
	}
}

func (p *Pages) signIn() (Page, error) {
	return p.render(http.StatusUnauthorized, templateSignIn, signInData("Sign in required"))
}

func signInData(title string) map[string]any {
	return map[string]any{
		"title":   title,
		"message": client.ErrUnauthenticated.Message,
		"command": "insightsctl login",
	}
}

func (p *Pages) render(status int, name string, data map[string]any) (Page, error) {
	var buf bytes.Buffer
	if _, err := p.renderer.Render(name, data, &buf); err != nil {
		return Page{}, err
	}
	return Page{Status: status, Body: buf.Bytes()}, nil
}

func datasetRows(datasets []client.Dataset) []map[string]any {
	rows := make([]map[string]any, 0, len(datasets))
	for _, ds := range datasets {
		ready := ds.Status == client.StatusReady
		row := map[string]any{
			"id":           ds.ID,
			"filename":     ds.Filename,
			"status":       string(ds.Status),
			"status_class": "status-" + statusClass(ds.Status),
			"ready":        ready,
			"href":         "",
		}
		if ready {
			row["href"] = poller.DashboardRoute(ds.ID)
		}
		rows = append(rows, row)
	}
	return rows
}

func statusClass(status client.DatasetStatus) string {
	switch status {
	case client.StatusReady:
		return "ready"
	case client.StatusProcessing:
		return "processing"
	case client.StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func cardView(card widgets.Card) map[string]any {
	return map[string]any{
		"id":          card.ID,
		"kind":        card.Kind,
		"title":       card.Title,
		"value":       card.Value,
		"chart_type":  string(card.ChartType),
		"chart_html":  card.HTML,
		"message":     card.Message,
		"placeholder": card.Placeholder(),
	}
}

func insightRows(set *client.InsightSet) []map[string]any {
	if set == nil {
		return []map[string]any{}
	}
	rows := make([]map[string]any, 0, len(set.Insights))
	for _, insight := range set.Insights {
		tone := widgets.InsightTone(insight.Type)
		rows = append(rows, map[string]any{
			"label":   tone.Label,
			"class":   tone.Class,
			"message": insight.Message,
		})
	}
	return rows
}

func errorPayload(err error) map[string]string {
	return map[string]string{"error": client.Message(err)}
}

func refreshWhen(cond bool, secs int) int {
	if !cond {
		return 0
	}
	return secs
}

func seconds(d time.Duration) int {
	return int(math.Max(1, math.Ceil(d.Seconds())))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05")
}
