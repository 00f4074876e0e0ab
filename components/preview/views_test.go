package preview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-insights/components/poller"
	"github.com/goliatone/go-insights/pkg/client"
)

func TestViewsKeepOneActiveView(t *testing.T) {
	mock := client.NewMock(client.StaticToken("tok"), fixture())
	mock.IssueToken("tok", "ana@example.com")
	created := 0
	views, err := NewViews(context.Background(), func(id string) (*poller.DashboardView, error) {
		created++
		return poller.NewDashboardView(id, poller.DashboardViewOptions{API: mock, Interval: time.Hour})
	})
	require.NoError(t, err)
	defer views.Close()

	first, err := views.Open("ds-1")
	require.NoError(t, err)
	again, err := views.Open("ds-1")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, mock.Calls(client.OpDashboardByDataset))

	updates, cancel := first.Subscribe()
	defer cancel()
	second, err := views.Open("ds-2")
	require.NoError(t, err)
	assert.False(t, first.Snapshot().Active)
	assert.ErrorIs(t, first.Activate(context.Background()), poller.ErrViewClosed)
	for range updates {
	}
	assert.True(t, second.Snapshot().Active)
	assert.Same(t, second, views.Active())
}

func TestViewsOutliveRequestContext(t *testing.T) {
	mock := client.NewMock(client.StaticToken("tok"), fixture())
	mock.IssueToken("tok", "ana@example.com")
	views, err := NewViews(context.Background(), func(id string) (*poller.DashboardView, error) {
		return poller.NewDashboardView(id, poller.DashboardViewOptions{API: mock, Interval: 5 * time.Millisecond})
	})
	require.NoError(t, err)
	defer views.Close()

	_, err = views.Open("ds-2")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return mock.Calls(client.OpInsights) >= 2 }, time.Second, time.Millisecond)
}

func TestNewViewsRequiresFactory(t *testing.T) {
	_, err := NewViews(context.Background(), nil)
	require.Error(t, err)
}
