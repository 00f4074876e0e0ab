package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-insights/pkg/client"
)

func TestLoginCommand(t *testing.T) {
	session := &stubSession{}
	telemetry := &stubTelemetry{}
	cmd := NewLoginCommand(session, telemetry)

	err := cmd.Execute(context.Background(), LoginInput{Email: "  ada@example.com ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, session.loginCalls)
	assert.Equal(t, "ada@example.com", session.email)
	assert.Equal(t, []string{"auth.login"}, telemetry.events)
}

func TestLoginCommandValidation(t *testing.T) {
	session := &stubSession{}
	cmd := NewLoginCommand(session, nil)

	cases := []struct {
		name  string
		input LoginInput
		want  error
	}{
		{"missing email", LoginInput{Password: "x"}, errMissingEmail},
		{"invalid email", LoginInput{Email: "not-an-email", Password: "x"}, errInvalidEmail},
		{"missing password", LoginInput{Email: "ada@example.com"}, errMissingPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := cmd.Execute(context.Background(), tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, session.loginCalls)
}

func TestLoginCommandFailure(t *testing.T) {
	failure := &client.Error{Kind: client.KindUnauthenticated, Status: 401, Message: "Invalid email or password"}
	session := &stubSession{err: failure}
	telemetry := &stubTelemetry{}
	cmd := NewLoginCommand(session, telemetry)

	err := cmd.Execute(context.Background(), LoginInput{Email: "ada@example.com", Password: "bad"})
	require.ErrorIs(t, err, failure)
	assert.Equal(t, "Invalid email or password", client.Message(err))
	assert.Equal(t, []string{"auth.login.failed"}, telemetry.events)
}

func TestRegisterCommand(t *testing.T) {
	session := &stubSession{}
	cmd := NewRegisterCommand(session, nil)

	require.NoError(t, cmd.Execute(context.Background(), RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret"}))
	assert.Equal(t, 1, session.registerCalls)
	assert.Equal(t, "Ada", session.name)
}

func TestLogoutCommand(t *testing.T) {
	session := &stubSession{}
	cmd := NewLogoutCommand(session, nil)

	require.NoError(t, cmd.Execute(context.Background(), LogoutInput{}))
	require.NoError(t, cmd.Execute(context.Background(), LogoutInput{}))
	assert.Equal(t, 2, session.logoutCalls)
}

func TestCommandsRequireSession(t *testing.T) {
	require.ErrorIs(t, NewLoginCommand(nil, nil).Execute(context.Background(), LoginInput{}), errMissingSession)
	require.ErrorIs(t, NewRegisterCommand(nil, nil).Execute(context.Background(), RegisterInput{}), errMissingSession)
	require.ErrorIs(t, NewLogoutCommand(nil, nil).Execute(context.Background(), LogoutInput{}), errMissingSession)
}

func TestUploadDatasetCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("region,amount\nnorth,10\n"), 0o600))

	up := &stubUploader{dataset: client.Dataset{ID: "ds-1", Filename: "sales.csv", Status: client.StatusProcessing}}
	telemetry := &stubTelemetry{}
	cmd := NewUploadDatasetCommand(up, nil, telemetry)

	var created client.Dataset
	require.NoError(t, cmd.Execute(context.Background(), UploadDatasetInput{Path: path, Result: &created}))
	assert.Equal(t, "sales.csv", up.filename)
	assert.Equal(t, "region,amount\nnorth,10\n", up.body)
	assert.Equal(t, "ds-1", created.ID)
	assert.Equal(t, []string{"dataset.upload"}, telemetry.events)
}

func TestUploadDatasetCommandValidation(t *testing.T) {
	dir := t.TempDir()
	up := &stubUploader{}
	cmd := NewUploadDatasetCommand(up, nil, nil)

	require.ErrorIs(t, cmd.Execute(context.Background(), UploadDatasetInput{}), errMissingPath)
	require.ErrorIs(t, cmd.Execute(context.Background(), UploadDatasetInput{Path: filepath.Join(dir, "notes.txt")}), ErrUnsupportedFile)

	err := cmd.Execute(context.Background(), UploadDatasetInput{Path: filepath.Join(dir, "missing.csv")})
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.json"), 0o700))
	require.Error(t, cmd.Execute(context.Background(), UploadDatasetInput{Path: filepath.Join(dir, "folder.json")}))

	assert.Zero(t, up.calls)
	require.ErrorIs(t, NewUploadDatasetCommand(nil, nil, nil).Execute(context.Background(), UploadDatasetInput{Path: "a.csv"}), errMissingUploader)
}

func TestUploadDatasetCommandHandsFailureToGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o600))

	up := &stubUploader{err: &client.Error{Kind: client.KindUnauthenticated, Status: 401, Message: "Could not validate credentials"}}
	guard := &stubGuard{}
	cmd := NewUploadDatasetCommand(up, guard, nil)

	err := cmd.Execute(context.Background(), UploadDatasetInput{Path: path})
	require.True(t, client.IsUnauthenticated(err))
	assert.Equal(t, 1, guard.calls)
}

func TestProfileQuery(t *testing.T) {
	tokens := client.StaticToken("")
	mock := client.NewMock(&tokens, client.MockData{
		Users: map[string]client.MockUser{
			"ada@example.com": {Password: "secret", Profile: client.UserProfile{ID: "u1", Email: "ada@example.com", Stats: client.UsageStats{DatasetsUploaded: 2}}},
		},
	})
	mock.IssueToken("tok", "ada@example.com")
	tokens = "tok"

	q := NewProfileQuery(mock, nil)
	me, err := q.Query(context.Background(), ProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)

	profile, err := q.Query(context.Background(), ProfileRequest{WithStats: true})
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Stats.DatasetsUploaded)
	assert.Equal(t, 1, mock.Calls(client.OpMe))
	assert.Equal(t, 1, mock.Calls(client.OpProfile))
}

func TestProfileQueryUnauthenticated(t *testing.T) {
	guard := &stubGuard{}
	q := NewProfileQuery(client.NewMock(client.StaticToken(""), client.MockData{}), guard)

	_, err := q.Query(context.Background(), ProfileRequest{})
	require.ErrorIs(t, err, client.ErrUnauthenticated)
	assert.Equal(t, 1, guard.calls)
}

func TestDatasetsQueryFiltersByStatus(t *testing.T) {
	mock := client.NewMock(client.StaticToken("tok"), client.MockData{})
	mock.IssueToken("tok", "ada@example.com")
	mock.SetDatasets([]client.Dataset{
		{ID: "a", Filename: "a.csv", Status: client.StatusReady},
		{ID: "b", Filename: "b.csv", Status: client.StatusProcessing},
		{ID: "c", Filename: "c.csv", Status: client.StatusReady},
	})
	q := NewDatasetsQuery(mock, nil)

	all, err := q.Query(context.Background(), DatasetsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ready, err := q.Query(context.Background(), DatasetsRequest{Status: client.StatusReady})
	require.NoError(t, err)
	require.Len(t, ready, 2)
	assert.Equal(t, "a", ready[0].ID)
	assert.Equal(t, "c", ready[1].ID)

	_, err = NewDatasetsQuery(nil, nil).Query(context.Background(), DatasetsRequest{})
	require.ErrorIs(t, err, errMissingAPI)
}

type stubSession struct {
	err           error
	loginCalls    int
	registerCalls int
	logoutCalls   int
	name          string
	email         string
}

func (s *stubSession) Login(_ context.Context, email, _ string) error {
	s.loginCalls++
	s.email = email
	return s.err
}

func (s *stubSession) Register(_ context.Context, name, email, _ string) error {
	s.registerCalls++
	s.name = name
	s.email = email
	return s.err
}

func (s *stubSession) Logout() {
	s.logoutCalls++
}

type stubUploader struct {
	dataset  client.Dataset
	err      error
	calls    int
	filename string
	body     string
}

func (s *stubUploader) Upload(_ context.Context, upload client.Upload) (client.Dataset, error) {
	s.calls++
	s.filename = upload.Filename
	buf := make([]byte, 256)
	n, _ := upload.Body.Read(buf)
	s.body = string(buf[:n])
	return s.dataset, s.err
}

type stubGuard struct {
	calls int
}

func (g *stubGuard) HandleError(err error) bool {
	g.calls++
	return client.IsUnauthenticated(err)
}

type stubTelemetry struct {
	events []string
}

func (s *stubTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	s.events = append(s.events, event)
}
