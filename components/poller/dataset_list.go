package poller

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-insights/internal/broadcast"
	"github.com/goliatone/go-insights/internal/logger"
	"github.com/goliatone/go-insights/pkg/client"
)

// DefaultDatasetInterval is the refetch period while datasets are processing.
const DefaultDatasetInterval = 6 * time.Second

var (
	// ErrDatasetNotReady is returned when opening a dataset that is not READY.
	ErrDatasetNotReady = errors.New("poller: dataset is not ready")
	// ErrDatasetNotFound is returned when opening an id missing from the list.
	ErrDatasetNotFound = errors.New("poller: dataset not found")
)

// DatasetSnapshot is the last known dataset list.
type DatasetSnapshot struct {
	Datasets  []client.Dataset
	Loaded    bool
	Err       error
	State     State
	UpdatedAt time.Time
}

// Processing reports whether any dataset is still PROCESSING.
func (s DatasetSnapshot) Processing() bool {
	for _, ds := range s.Datasets {
		if ds.Status.Transitional() {
			return true
		}
	}
	return false
}

// Find returns the dataset with id.
func (s DatasetSnapshot) Find(id string) (client.Dataset, bool) {
	for _, ds := range s.Datasets {
		if ds.ID == id {
			return ds, true
		}
	}
	return client.Dataset{}, false
}

// DatasetListOptions configures a DatasetList.
type DatasetListOptions struct {
	API      client.DatasetAPI
	Interval time.Duration
	Logger   *logger.Logger
	// OnError observes failed fetches, e.g. to sign out on a rejected token.
	OnError func(error)
}

// DatasetList keeps the user's datasets fresh while any of them is processing.
type DatasetList struct {
	api     client.DatasetAPI
	log     *logger.Logger
	onError func(error)
	poller  *Poller
	hub     *broadcast.Hub[DatasetSnapshot]

	mu       sync.RWMutex
	snapshot DatasetSnapshot
}

// NewDatasetList builds an idle list poller.
func NewDatasetList(opts DatasetListOptions) (*DatasetList, error) {
	if opts.API == nil {
		return nil, errors.New("poller: dataset api is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultDatasetInterval
	}
	l := &DatasetList{
		api:     opts.API,
		log:     logger.OrNop(opts.Logger),
		onError: opts.OnError,
		hub:     broadcast.New[DatasetSnapshot](8),
	}
	l.poller = New(opts.Interval, Sequential, l.fetch)
	l.poller.OnSettle(func(State) { l.publish() })
	return l, nil
}

// Start fetches immediately and keeps polling while datasets are processing.
func (l *DatasetList) Start(ctx context.Context) {
	l.poller.Start(ctx)
}

// Stop cancels any pending fetch.
func (l *DatasetList) Stop() {
	l.poller.Stop()
	l.publish()
}

// Wait blocks until in-flight fetches started by the poller return.
func (l *DatasetList) Wait() {
	l.poller.Wait()
}

// Close stops polling, waits for in-flight fetches and ends every
// subscription. The list cannot be restarted afterwards.
func (l *DatasetList) Close() {
	l.poller.Stop()
	l.poller.Wait()
	l.hub.Close()
}

// Refresh fetches once now and re-arms polling when needed.
func (l *DatasetList) Refresh(ctx context.Context) {
	l.poller.Kick(ctx)
}

// Upload submits a file, then refetches the list once immediately. Upload
// failures are returned unchanged.
func (l *DatasetList) Upload(ctx context.Context, upload client.Upload) (client.Dataset, error) {
	ds, err := l.api.UploadDataset(ctx, upload)
	if err != nil {
		l.log.Info("dataset upload failed", "filename", upload.Filename, "error", err)
		return client.Dataset{}, err
	}
	l.log.Info("dataset uploaded", "dataset_id", ds.ID, "filename", ds.Filename)
	l.poller.Kick(ctx)
	return ds, nil
}

// Open returns the dashboard route for a READY dataset.
func (l *DatasetList) Open(datasetID string) (string, error) {
	ds, ok := l.Snapshot().Find(datasetID)
	if !ok {
		return "", ErrDatasetNotFound
	}
	if ds.Status != client.StatusReady {
		return "", ErrDatasetNotReady
	}
	return DashboardRoute(ds.ID), nil
}

// DashboardRoute is the route that renders the dashboard for datasetID.
func DashboardRoute(datasetID string) string {
	return "/dashboard/" + url.PathEscape(datasetID)
}

// Snapshot returns a copy of the current list.
func (l *DatasetList) Snapshot() DatasetSnapshot {
	l.mu.RLock()
	snap := l.snapshot
	l.mu.RUnlock()
	snap.Datasets = append([]client.Dataset(nil), snap.Datasets...)
	snap.State = l.poller.State()
	return snap
}

// Subscribe streams snapshots after every fetch.
func (l *DatasetList) Subscribe() (<-chan DatasetSnapshot, func()) {
	return l.hub.Subscribe()
}

// fetch is the poll attempt. A failed fetch keeps the previous list and keeps
// polling only if that list still had processing datasets.
func (l *DatasetList) fetch(ctx context.Context) bool {
	datasets, err := l.api.ListDatasets(ctx)
	if ctx.Err() != nil {
		return false
	}

	l.mu.Lock()
	if err != nil {
		l.snapshot.Err = err
	} else {
		l.snapshot.Datasets = datasets
		l.snapshot.Loaded = true
		l.snapshot.Err = nil
	}
	l.snapshot.UpdatedAt = time.Now()
	cont := l.snapshot.Processing()
	l.mu.Unlock()

	if err != nil {
		l.log.Warn("dataset list fetch failed", "error", err)
		if l.onError != nil {
			l.onError(err)
		}
	} else {
		l.log.Debug("dataset list fetched", "count", len(datasets), "processing", cont)
	}
	return cont
}

func (l *DatasetList) publish() {
	l.hub.Publish(l.Snapshot())
}
