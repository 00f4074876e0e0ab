package poller

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-insights/pkg/client"
)

func newMockAPI(data client.MockData) *client.Mock {
	mock := client.NewMock(client.StaticToken("tok"), data)
	mock.IssueToken("tok", "ana@example.com")
	return mock
}

func TestDatasetListPublishesEmptyList(t *testing.T) {
	mock := newMockAPI(client.MockData{})
	list, err := NewDatasetList(DatasetListOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)
	updates, cancel := list.Subscribe()
	defer cancel()

	list.Start(context.Background())
	defer list.Stop()

	snap := <-updates
	assert.True(t, snap.Loaded)
	assert.Empty(t, snap.Datasets)
	assert.Equal(t, StateSettled, snap.State)
	assert.Equal(t, 1, mock.Calls(client.OpListDatasets))
}

func TestDatasetListPollsWhileProcessing(t *testing.T) {
	mock := newMockAPI(client.MockData{
		Datasets:   []client.Dataset{{ID: "ds-1", Filename: "a.csv", Status: client.StatusProcessing}},
		ReadyAfter: 2,
	})
	list, err := NewDatasetList(DatasetListOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	list.Start(context.Background())
	defer list.Stop()

	require.Eventually(t, func() bool {
		snap := list.Snapshot()
		return snap.State == StateSettled && !snap.Processing()
	}, time.Second, time.Millisecond)
	assert.Equal(t, 3, mock.Calls(client.OpListDatasets))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, mock.Calls(client.OpListDatasets))
}

func TestDatasetListFailureKeepsSnapshot(t *testing.T) {
	mock := newMockAPI(client.MockData{
		Datasets: []client.Dataset{{ID: "ds-1", Filename: "a.csv", Status: client.StatusProcessing}},
	})
	var observed []error
	list, err := NewDatasetList(DatasetListOptions{
		API:      mock,
		Interval: 5 * time.Millisecond,
		OnError:  func(err error) { observed = append(observed, err) },
	})
	require.NoError(t, err)

	list.Refresh(context.Background())
	mock.FailNext(client.OpListDatasets, &client.Error{Kind: client.KindServer, Status: 502, Message: "bad gateway"})
	list.Refresh(context.Background())

	snap := list.Snapshot()
	require.Len(t, snap.Datasets, 1)
	assert.Equal(t, client.KindServer, client.KindOf(snap.Err))
	assert.Len(t, observed, 1)
}

func TestDatasetListFailureReschedulesOnlyWhileProcessing(t *testing.T) {
	mock := newMockAPI(client.MockData{
		Datasets: []client.Dataset{{ID: "ds-1", Filename: "a.csv", Status: client.StatusReady}},
	})
	mock.FailNext(client.OpListDatasets, &client.Error{Kind: client.KindNetwork})
	list, err := NewDatasetList(DatasetListOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	list.Start(context.Background())
	defer list.Stop()
	require.Eventually(t, func() bool { return list.Snapshot().State == StateSettled }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, mock.Calls(client.OpListDatasets))
	assert.False(t, list.Snapshot().Loaded)
}

func TestDatasetListStopCancelsPendingFetch(t *testing.T) {
	mock := newMockAPI(client.MockData{
		Datasets: []client.Dataset{{ID: "ds-1", Filename: "a.csv", Status: client.StatusProcessing}},
	})
	list, err := NewDatasetList(DatasetListOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	list.Start(context.Background())
	require.Eventually(t, func() bool { return mock.Calls(client.OpListDatasets) >= 2 }, time.Second, time.Millisecond)
	list.Stop()
	list.Wait()

	calls := mock.Calls(client.OpListDatasets)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, mock.Calls(client.OpListDatasets))
	assert.Equal(t, StateStopped, list.Snapshot().State)
}

func TestDatasetListCloseEndsSubscriptions(t *testing.T) {
	mock := newMockAPI(client.MockData{
		Datasets: []client.Dataset{{ID: "ds-1", Filename: "a.csv", Status: client.StatusProcessing}},
	})
	list, err := NewDatasetList(DatasetListOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	updates, cancel := list.Subscribe()
	defer cancel()
	list.Start(context.Background())
	require.Eventually(t, func() bool { return mock.Calls(client.OpListDatasets) >= 1 }, time.Second, time.Millisecond)
	list.Close()

	for range updates {
	}
	calls := mock.Calls(client.OpListDatasets)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, mock.Calls(client.OpListDatasets))
}

func TestDatasetListUploadToDashboardRoute(t *testing.T) {
	mock := newMockAPI(client.MockData{ReadyAfter: 1})
	list, err := NewDatasetList(DatasetListOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	list.Start(context.Background())
	defer list.Stop()
	require.Eventually(t, func() bool { return list.Snapshot().State == StateSettled }, time.Second, time.Millisecond)

	ds, err := list.Upload(context.Background(), client.Upload{Filename: "sales.csv", Body: strings.NewReader("region,total\n")})
	require.NoError(t, err)

	snap := list.Snapshot()
	got, ok := snap.Find(ds.ID)
	require.True(t, ok)
	assert.Equal(t, client.StatusProcessing, got.Status)
	_, err = list.Open(ds.ID)
	assert.ErrorIs(t, err, ErrDatasetNotReady)

	require.Eventually(t, func() bool {
		snap := list.Snapshot()
		current, _ := snap.Find(ds.ID)
		return current.Status == client.StatusReady && snap.State == StateSettled
	}, time.Second, time.Millisecond)

	route, err := list.Open(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard/"+ds.ID, route)

	_, err = list.Open("missing")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestDatasetListUploadFailureIsReturned(t *testing.T) {
	mock := newMockAPI(client.MockData{})
	list, err := NewDatasetList(DatasetListOptions{API: mock})
	require.NoError(t, err)

	_, err = list.Upload(context.Background(), client.Upload{Filename: "notes.txt", Body: strings.NewReader("x")})
	assert.Equal(t, client.KindRequest, client.KindOf(err))
	assert.Zero(t, mock.Calls(client.OpListDatasets))
}
