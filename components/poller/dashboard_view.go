package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-insights/internal/broadcast"
	"github.com/goliatone/go-insights/internal/logger"
	"github.com/goliatone/go-insights/pkg/client"
)

// DefaultInsightInterval is the insight poll period.
const DefaultInsightInterval = 5 * time.Second

var (
	// ErrViewInactive is returned by Reload when the view is not active.
	ErrViewInactive = errors.New("poller: dashboard view is not active")
	// ErrViewClosed is returned by Activate after Close.
	ErrViewClosed = errors.New("poller: dashboard view is closed")
)

// ViewPhase tracks the dashboard layout load.
type ViewPhase int

const (
	PhaseLoading ViewPhase = iota
	PhaseReady
	PhaseError
)

func (p ViewPhase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "loading"
	}
}

// ViewSnapshot is what a dashboard page renders.
type ViewSnapshot struct {
	DatasetID       string
	Active          bool
	Phase           ViewPhase
	Dashboard       *client.Dashboard
	Insights        *client.InsightSet
	InsightsLoading bool
	Err             error
}

// ViewAPI is the gateway subset a DashboardView needs.
type ViewAPI interface {
	client.DashboardAPI
	client.InsightAPI
}

// DashboardViewOptions configures a DashboardView.
type DashboardViewOptions struct {
	API      ViewAPI
	Interval time.Duration
	Logger   *logger.Logger
	OnError  func(error)
}

// DashboardView loads a dashboard layout, requests insight generation once
// per activation and polls until insights arrive.
type DashboardView struct {
	datasetID string
	api       ViewAPI
	interval  time.Duration
	log       *logger.Logger
	onError   func(error)
	hub       *broadcast.Hub[ViewSnapshot]

	mu         sync.RWMutex
	snapshot   ViewSnapshot
	activation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	generated  bool
	closed     bool
	insights   *Poller
	last       *Poller
	background sync.WaitGroup
}

// NewDashboardView builds an inactive view for datasetID.
func NewDashboardView(datasetID string, opts DashboardViewOptions) (*DashboardView, error) {
	if datasetID == "" {
		return nil, errors.New("poller: dataset id is required")
	}
	if opts.API == nil {
		return nil, errors.New("poller: dashboard api is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInsightInterval
	}
	return &DashboardView{
		datasetID: datasetID,
		api:       opts.API,
		interval:  opts.Interval,
		log:       logger.OrNop(opts.Logger).With("dataset_id", datasetID),
		onError:   opts.OnError,
		hub:       broadcast.New[ViewSnapshot](8),
		snapshot:  ViewSnapshot{DatasetID: datasetID},
	}, nil
}

// DatasetID returns the dataset the view is keyed by.
func (v *DashboardView) DatasetID() string {
	return v.datasetID
}

// Activate starts a new activation and loads the layout. A load failure is
// terminal for the activation and is returned. Activating an active view is a
// no-op.
func (v *DashboardView) Activate(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.snapshot.Active {
		v.mu.Unlock()
		return nil
	}
	v.activation++
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.generated = false
	v.insights = nil
	v.snapshot = ViewSnapshot{DatasetID: v.datasetID, Active: true, Phase: PhaseLoading}
	activation := v.activation
	actx := v.ctx
	v.mu.Unlock()
	v.publish()

	v.log.Debug("dashboard view activated")
	return v.load(actx, activation)
}

// Reload refetches the layout within the current activation. Generation is
// not requested again.
func (v *DashboardView) Reload(ctx context.Context) error {
	v.mu.RLock()
	active := v.snapshot.Active
	activation := v.activation
	v.mu.RUnlock()
	if !active {
		return ErrViewInactive
	}
	return v.load(ctx, activation)
}

// Deactivate cancels generation and insight polling. Late responses are dropped.
func (v *DashboardView) Deactivate() {
	v.end(0)
}

// end closes the current activation. A non-zero activation only closes that
// activation.
func (v *DashboardView) end(activation uint64) {
	v.mu.Lock()
	if !v.snapshot.Active || (activation != 0 && activation != v.activation) {
		v.mu.Unlock()
		return
	}
	v.activation++
	v.snapshot.Active = false
	v.snapshot.InsightsLoading = false
	insights := v.insights
	v.insights = nil
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.mu.Unlock()

	if insights != nil {
		insights.Stop()
	}
	v.log.Debug("dashboard view deactivated")
	v.publish()
}

// Wait blocks until background work of past activations has returned.
func (v *DashboardView) Wait() {
	v.background.Wait()
	v.mu.RLock()
	last := v.last
	v.mu.RUnlock()
	if last != nil {
		last.Wait()
	}
}

// Close deactivates the view for good, waits for background work and ends
// every subscription.
func (v *DashboardView) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.Deactivate()
	v.Wait()
	v.hub.Close()
}

// Snapshot returns the current view state.
func (v *DashboardView) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// Subscribe streams snapshots as the view changes.
func (v *DashboardView) Subscribe() (<-chan ViewSnapshot, func()) {
	return v.hub.Subscribe()
}

func (v *DashboardView) load(ctx context.Context, activation uint64) error {
	dash, err := v.api.DashboardByDataset(ctx, v.datasetID)

	v.mu.Lock()
	if activation != v.activation {
		v.mu.Unlock()
		if err != nil {
			return err
		}
		return ErrViewInactive
	}
	if err != nil {
		v.snapshot.Phase = PhaseError
		v.snapshot.Err = err
		v.snapshot.InsightsLoading = false
		v.mu.Unlock()
		v.log.Warn("dashboard load failed", "error", err)
		if v.onError != nil {
			v.onError(err)
		}
		v.publish()
		return err
	}
	v.snapshot.Phase = PhaseReady
	v.snapshot.Dashboard = &dash
	v.snapshot.Err = nil

	fireGeneration := !v.generated
	v.generated = true
	var startPolling *Poller
	if v.snapshot.Insights == nil && v.insights == nil {
		startPolling = New(v.interval, FixedRate, func(pctx context.Context) bool {
			return v.pollInsights(pctx, activation)
		})
		v.insights = startPolling
		v.last = startPolling
		v.snapshot.InsightsLoading = true
	}
	actx := v.ctx
	v.mu.Unlock()
	v.publish()

	if fireGeneration {
		v.background.Add(1)
		go func() {
			defer v.background.Done()
			v.generate(actx)
		}()
	}
	if startPolling != nil {
		startPolling.Start(actx)
	}
	return nil
}

func (v *DashboardView) generate(ctx context.Context) {
	if err := v.api.GenerateInsights(ctx, v.datasetID); err != nil {
		if ctx.Err() == nil {
			v.log.Warn("insight generation request failed", "error", err)
			if v.onError != nil {
				v.onError(err)
			}
		}
		return
	}
	v.log.Debug("insight generation requested")
}

// pollInsights is one insight attempt. Failures are treated as not ready,
// except a lost session which ends the activation.
func (v *DashboardView) pollInsights(ctx context.Context, activation uint64) bool {
	set, err := v.api.Insights(ctx, v.datasetID)
	if err != nil {
		if client.IsUnauthenticated(err) {
			if ctx.Err() != nil {
				return false
			}
			v.log.Info("insight polling stopped, session ended", "error", err)
			if v.onError != nil {
				v.onError(err)
			}
			v.end(activation)
			return false
		}
		v.log.Debug("insights not ready", "error", err)
		return true
	}

	v.mu.Lock()
	if activation != v.activation || v.snapshot.Insights != nil {
		v.mu.Unlock()
		return false
	}
	v.snapshot.Insights = &set
	v.snapshot.InsightsLoading = false
	v.mu.Unlock()
	v.log.Info("insights received", "count", len(set.Insights))
	v.publish()
	return false
}

func (v *DashboardView) publish() {
	v.hub.Publish(v.Snapshot())
}
