package poller

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-insights/pkg/client"
)

func dashboardFixture() client.MockData {
	value := 1234.5
	summary := "Revenue is up."
	return client.MockData{
		Datasets: []client.Dataset{{ID: "ds-1", Filename: "sales.csv", Status: client.StatusReady}},
		Dashboards: map[string]client.Dashboard{
			"ds-1": {
				ID:        "db-1",
				DatasetID: "ds-1",
				Title:     "Sales",
				Widgets:   []client.WidgetPayload{{ID: "w1", Type: "kpi", Metric: "Revenue", Value: &value}},
			},
		},
		Insights: map[string]client.InsightSet{
			"ds-1": {DatasetID: "ds-1", Insights: []client.Insight{{Type: client.InsightTrend, Message: "Up"}}, Summary: &summary},
		},
	}
}

func TestDashboardViewFirstInsightAttemptIsImmediate(t *testing.T) {
	data := dashboardFixture()
	mock := newMockAPI(data)
	mock.SetInsights("ds-1", data.Insights["ds-1"])
	view, err := NewDashboardView("ds-1", DashboardViewOptions{API: mock, Interval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, view.Activate(context.Background()))
	defer view.Deactivate()

	snap := view.Snapshot()
	assert.Equal(t, PhaseReady, snap.Phase)
	require.NotNil(t, snap.Dashboard)
	assert.Equal(t, "Sales", snap.Dashboard.Title)

	require.Eventually(t, func() bool { return mock.Calls(client.OpInsights) == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return view.Snapshot().Insights != nil }, time.Second, time.Millisecond)
	assert.False(t, view.Snapshot().InsightsLoading)
}

func TestDashboardViewStopsPollingAfterSuccess(t *testing.T) {
	data := dashboardFixture()
	data.InsightsAfter = 2
	mock := newMockAPI(data)
	view, err := NewDashboardView("ds-1", DashboardViewOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, view.Activate(context.Background()))
	defer view.Deactivate()

	require.Eventually(t, func() bool { return view.Snapshot().Insights != nil }, time.Second, time.Millisecond)
	view.Wait()
	calls := mock.Calls(client.OpInsights)
	assert.GreaterOrEqual(t, calls, 3)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, mock.Calls(client.OpInsights))
	assert.Equal(t, "Revenue is up.", view.Snapshot().Insights.SummaryText())
}

func TestDashboardViewGeneratesOncePerActivation(t *testing.T) {
	mock := newMockAPI(dashboardFixture())
	view, err := NewDashboardView("ds-1", DashboardViewOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, view.Activate(context.Background()))
	require.NoError(t, view.Reload(context.Background()))
	require.NoError(t, view.Reload(context.Background()))
	require.NoError(t, view.Activate(context.Background()))
	view.Wait()
	assert.Equal(t, 1, mock.Calls(client.OpGenerateInsights))
	assert.Equal(t, 3, mock.Calls(client.OpDashboardByDataset))

	view.Deactivate()
	require.NoError(t, view.Activate(context.Background()))
	defer view.Deactivate()
	require.Eventually(t, func() bool { return mock.Calls(client.OpGenerateInsights) == 2 }, time.Second, time.Millisecond)
}

func TestDashboardViewDeactivateCancelsPolling(t *testing.T) {
	data := dashboardFixture()
	delete(data.Insights, "ds-1")
	mock := newMockAPI(data)
	view, err := NewDashboardView("ds-1", DashboardViewOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, view.Activate(context.Background()))
	require.Eventually(t, func() bool { return mock.Calls(client.OpInsights) >= 2 }, time.Second, time.Millisecond)
	assert.True(t, view.Snapshot().InsightsLoading)

	view.Deactivate()
	view.Wait()
	calls := mock.Calls(client.OpInsights)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, mock.Calls(client.OpInsights))
	assert.False(t, view.Snapshot().Active)
	assert.ErrorIs(t, view.Reload(context.Background()), ErrViewInactive)
}

func TestDashboardViewEndsActivationWhenSessionIsRejected(t *testing.T) {
	data := dashboardFixture()
	delete(data.Insights, "ds-1")
	mock := newMockAPI(data)
	mock.FailNext(client.OpInsights, &client.Error{Kind: client.KindUnauthenticated, Status: http.StatusUnauthorized, Message: "Could not validate credentials"})

	var rejected []error
	var mu sync.Mutex
	view, err := NewDashboardView("ds-1", DashboardViewOptions{
		API:      mock,
		Interval: 5 * time.Millisecond,
		OnError: func(err error) {
			mu.Lock()
			rejected = append(rejected, err)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	updates, cancel := view.Subscribe()
	defer cancel()
	require.NoError(t, view.Activate(context.Background()))

	require.Eventually(t, func() bool { return !view.Snapshot().Active }, time.Second, time.Millisecond)
	view.Wait()
	calls := mock.Calls(client.OpInsights)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, mock.Calls(client.OpInsights))

	snap := view.Snapshot()
	assert.False(t, snap.InsightsLoading)
	assert.Nil(t, snap.Insights)

	var last ViewSnapshot
	for drained := false; !drained; {
		select {
		case last = <-updates:
		default:
			drained = true
		}
	}
	assert.False(t, last.Active)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, rejected, 1)
	assert.True(t, client.IsUnauthenticated(rejected[0]))
}

func TestDashboardViewCloseEndsSubscriptions(t *testing.T) {
	data := dashboardFixture()
	delete(data.Insights, "ds-1")
	mock := newMockAPI(data)
	view, err := NewDashboardView("ds-1", DashboardViewOptions{API: mock, Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	updates, cancel := view.Subscribe()
	defer cancel()
	require.NoError(t, view.Activate(context.Background()))
	view.Close()

	for range updates {
	}
	assert.False(t, view.Snapshot().Active)
	assert.ErrorIs(t, view.Activate(context.Background()), ErrViewClosed)
	view.Close()
}

func TestDashboardViewLoadFailureIsTerminal(t *testing.T) {
	data := dashboardFixture()
	delete(data.Dashboards, "ds-1")
	mock := newMockAPI(data)
	var observed []error
	view, err := NewDashboardView("ds-1", DashboardViewOptions{
		API:      mock,
		Interval: 5 * time.Millisecond,
		OnError:  func(err error) { observed = append(observed, err) },
	})
	require.NoError(t, err)

	err = view.Activate(context.Background())
	require.Error(t, err)
	defer view.Deactivate()

	snap := view.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Equal(t, "Dashboard not found for dataset", client.Message(snap.Err))
	assert.Len(t, observed, 1)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, mock.Calls(client.OpDashboardByDataset))
	assert.Zero(t, mock.Calls(client.OpGenerateInsights))
	assert.Zero(t, mock.Calls(client.OpInsights))
}

func TestNewDashboardViewValidates(t *testing.T) {
	_, err := NewDashboardView("", DashboardViewOptions{API: newMockAPI(client.MockData{})})
	assert.Error(t, err)
	_, err = NewDashboardView("ds-1", DashboardViewOptions{})
	assert.Error(t, err)
}
