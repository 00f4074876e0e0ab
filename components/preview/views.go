package preview

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-insights/components/poller"
)

// ViewFactory builds an inactive dashboard view for a dataset.
type ViewFactory func(datasetID string) (*poller.DashboardView, error)

// Views keeps at most one dashboard view active, like a single browser tab.
// Opening another dataset deactivates the previous view.
type Views struct {
	ctx     context.Context
	factory ViewFactory

	mu     sync.Mutex
	active *poller.DashboardView
}

// NewViews builds a view switcher. ctx bounds every activation, so it must
// outlive individual requests.
func NewViews(ctx context.Context, factory ViewFactory) (*Views, error) {
	if factory == nil {
		return nil, errors.New("preview: view factory is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Views{ctx: ctx, factory: factory}, nil
}

// Open activates the view for datasetID. Reopening the active dataset keeps
// its activation. The returned error is the layout load failure, if any; the
// view is still returned so its error state renders.
func (v *Views) Open(datasetID string) (*poller.DashboardView, error) {
	v.mu.Lock()
	if v.active != nil && v.active.DatasetID() == datasetID {
		view := v.active
		v.mu.Unlock()
		return view, view.Activate(v.ctx)
	}
	previous := v.active
	view, err := v.factory(datasetID)
	if err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.active = view
	v.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return view, view.Activate(v.ctx)
}

// Active returns the active view, or nil.
func (v *Views) Active() *poller.DashboardView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Close closes the active view and waits for its background work.
func (v *Views) Close() {
	v.mu.Lock()
	view := v.active
	v.active = nil
	v.mu.Unlock()
	if view != nil {
		view.Close()
	}
}
