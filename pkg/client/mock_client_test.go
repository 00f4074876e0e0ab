package client

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenBox struct{ token string }

func (b *tokenBox) Get() (string, bool) { return b.token, b.token != "" }

func TestMockAuthFlow(t *testing.T) {
	box := &tokenBox{}
	mock := NewMock(box, MockData{})
	ctx := context.Background()

	_, err := mock.Me(ctx)
	assert.True(t, IsUnauthenticated(err))

	resp, err := mock.Register(ctx, RegisterRequest{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Empty(t, resp.AccessToken)

	_, err = mock.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "nope"})
	assert.True(t, IsUnauthenticated(err))

	resp, err = mock.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)
	box.token = resp.AccessToken

	profile, err := mock.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", profile.Email)

	box.token = "forged"
	_, err = mock.Me(ctx)
	assert.True(t, IsUnauthenticated(err))
}

func TestMockSimulatesProcessing(t *testing.T) {
	mock := NewMock(StaticToken("tok"), MockData{ReadyAfter: 1, InsightsAfter: 1})
	mock.IssueToken("tok", "ana@example.com")
	ctx := context.Background()

	ds, err := mock.UploadDataset(ctx, Upload{Filename: "sales.csv", Body: strings.NewReader("a,b")})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, ds.Status)

	list, err := mock.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, list[0].Status)

	list, err = mock.ListDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, list[0].Status)

	mock.data.Insights[ds.ID] = InsightSet{DatasetID: ds.ID, Insights: []Insight{{Type: InsightTrend, Message: "up"}}}
	_, err = mock.Insights(ctx, ds.ID)
	assert.True(t, IsNotReady(err))

	require.NoError(t, mock.GenerateInsights(ctx, ds.ID))
	_, err = mock.Insights(ctx, ds.ID)
	assert.True(t, IsNotReady(err))
	set, err := mock.Insights(ctx, ds.ID)
	require.NoError(t, err)
	assert.Len(t, set.Insights, 1)
	assert.Equal(t, 3, mock.Calls(OpInsights))
}

func TestMockFailNext(t *testing.T) {
	mock := NewMock(StaticToken("tok"), MockData{})
	mock.IssueToken("tok", "ana@example.com")
	mock.FailNext(OpListDatasets, &Error{Kind: KindServer, Status: 503, Message: "down"})

	_, err := mock.ListDatasets(context.Background())
	assert.Equal(t, KindServer, KindOf(err))

	list, err := mock.ListDatasets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMockRejectsUnsupportedUpload(t *testing.T) {
	mock := NewMock(StaticToken("tok"), MockData{})
	mock.IssueToken("tok", "ana@example.com")

	_, err := mock.UploadDataset(context.Background(), Upload{Filename: "notes.txt", Body: strings.NewReader("x")})
	assert.Equal(t, KindRequest, KindOf(err))
}
