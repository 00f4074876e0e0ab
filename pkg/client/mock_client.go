package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Operation names used by Mock to count calls and inject failures.
const (
	OpRegister           = "register"
	OpLogin              = "login"
	OpMe                 = "me"
	OpProfile            = "profile"
	OpUploadDataset      = "upload dataset"
	OpListDatasets       = "list datasets"
	OpGetDataset         = "get dataset"
	OpCreateDashboard    = "create dashboard"
	OpDashboardByDataset = "get dashboard"
	OpGenerateInsights   = "generate insights"
	OpInsights           = "get insights"
)

// MockData seeds a Mock. ReadyAfter and InsightsAfter simulate the server's
// asynchronous processing: a PROCESSING dataset flips to READY after that many
// list calls, and insights appear after that many fetches following generation.
type MockData struct {
	Users         map[string]MockUser
	Datasets      []Dataset
	Dashboards    map[string]Dashboard
	Insights      map[string]InsightSet
	ReadyAfter    int
	InsightsAfter int
}

// MockUser is an account known to the Mock.
type MockUser struct {
	Password string
	Profile  UserProfile
}

// Mock implements API in memory for tests and the offline demo.
type Mock struct {
	mu          sync.Mutex
	tokens      TokenSource
	data        MockData
	sessions    map[string]string
	listsSeen   map[string]int
	generated   map[string]int
	calls       map[string]int
	failures    map[string][]error
	nextDataset int
}

var _ API = (*Mock)(nil)

// NewMock builds a mock backend. tokens is consulted like the HTTP client does.
func NewMock(tokens TokenSource, data MockData) *Mock {
	if tokens == nil {
		tokens = StaticToken("")
	}
	if data.Users == nil {
		data.Users = map[string]MockUser{}
	}
	if data.Dashboards == nil {
		data.Dashboards = map[string]Dashboard{}
	}
	if data.Insights == nil {
		data.Insights = map[string]InsightSet{}
	}
	return &Mock{
		tokens:    tokens,
		data:      data,
		sessions:  map[string]string{},
		listsSeen: map[string]int{},
		generated: map[string]int{},
		calls:     map[string]int{},
		failures:  map[string][]error{},
	}
}

// IssueToken registers a valid token for email without a login call.
func (m *Mock) IssueToken(token, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = email
}

// FailNext queues errors returned by the next calls of op, in order.
func (m *Mock) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
}

// SetDatasets replaces the dataset list.
func (m *Mock) SetDatasets(datasets []Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Datasets = append([]Dataset(nil), datasets...)
}

// SetInsights makes insights for datasetID available immediately.
func (m *Mock) SetInsights(datasetID string, set InsightSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Insights[datasetID] = set
	m.generated[datasetID] = m.data.InsightsAfter
}

// Calls returns how many times op was invoked.
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Mock) begin(op string, auth bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if auth {
		token, ok := m.tokens.Get()
		if !ok || token == "" {
			return "", &Error{Kind: KindUnauthenticated, Op: op, Message: ErrUnauthenticated.Message}
		}
		m.calls[op]++
		email, ok := m.sessions[token]
		if !ok {
			return "", &Error{Kind: KindUnauthenticated, Op: op, Status: http.StatusUnauthorized, Message: "Could not validate credentials"}
		}
		if err := m.popFailure(op); err != nil {
			return "", err
		}
		return email, nil
	}
	m.calls[op]++
	return "", m.popFailure(op)
}

func (m *Mock) popFailure(op string) error {
	queue := m.failures[op]
	if len(queue) == 0 {
		return nil
	}
	m.failures[op] = queue[1:]
	return queue[0]
}

// Register implements AuthAPI. Like the reference backend it does not issue a token.
func (m *Mock) Register(_ context.Context, req RegisterRequest) (AuthResponse, error) {
	if _, err := m.begin(OpRegister, false); err != nil {
		return AuthResponse{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data.Users[req.Email]; exists {
		return AuthResponse{}, &Error{Kind: KindRequest, Op: OpRegister, Status: http.StatusBadRequest, Message: "User already exists"}
	}
	m.data.Users[req.Email] = MockUser{
		Password: req.Password,
		Profile: UserProfile{
			ID:       fmt.Sprintf("user-%d", len(m.data.Users)+1),
			Email:    req.Email,
			Name:     req.Name,
			IsActive: true,
		},
	}
	return AuthResponse{}, nil
}

// Login implements AuthAPI.
func (m *Mock) Login(_ context.Context, req LoginRequest) (AuthResponse, error) {
	if _, err := m.begin(OpLogin, false); err != nil {
		return AuthResponse{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.data.Users[req.Email]
	if !ok || user.Password != req.Password {
		return AuthResponse{}, &Error{Kind: KindUnauthenticated, Op: OpLogin, Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	}
	token := fmt.Sprintf("token-%d-%s", len(m.sessions)+1, req.Email)
	m.sessions[token] = req.Email
	return AuthResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// Me implements AuthAPI.
func (m *Mock) Me(ctx context.Context) (UserProfile, error) {
	return m.profile(OpMe)
}

// Profile implements AuthAPI.
func (m *Mock) Profile(ctx context.Context) (UserProfile, error) {
	return m.profile(OpProfile)
}

func (m *Mock) profile(op string) (UserProfile, error) {
	email, err := m.begin(op, true)
	if err != nil {
		return UserProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.data.Users[email]
	if !ok {
		return UserProfile{Email: email, IsActive: true}, nil
	}
	return user.Profile, nil
}

// UploadDataset implements DatasetAPI; the new dataset starts PROCESSING.
func (m *Mock) UploadDataset(_ context.Context, upload Upload) (Dataset, error) {
	if _, err := m.begin(OpUploadDataset, true); err != nil {
		return Dataset{}, err
	}
	if upload.Body != nil {
		_, _ = io.Copy(io.Discard, upload.Body)
	}
	if !SupportedUpload(upload.Filename) {
		return Dataset{}, &Error{Kind: KindRequest, Op: OpUploadDataset, Status: http.StatusBadRequest, Message: "Unsupported file type"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDataset++
	ds := Dataset{
		ID:       fmt.Sprintf("ds-upload-%d", m.nextDataset),
		Filename: upload.Filename,
		Status:   StatusProcessing,
	}
	m.data.Datasets = append(m.data.Datasets, ds)
	return ds, nil
}

// ListDatasets implements DatasetAPI and advances simulated processing.
func (m *Mock) ListDatasets(context.Context) ([]Dataset, error) {
	if _, err := m.begin(OpListDatasets, true); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Dataset, len(m.data.Datasets))
	for i, ds := range m.data.Datasets {
		if ds.Status == StatusProcessing && m.data.ReadyAfter > 0 {
			m.listsSeen[ds.ID]++
			if m.listsSeen[ds.ID] > m.data.ReadyAfter {
				ds.Status = StatusReady
				m.data.Datasets[i] = ds
			}
		}
		out[i] = ds
	}
	return out, nil
}

// GetDataset implements DatasetAPI.
func (m *Mock) GetDataset(_ context.Context, datasetID string) (Dataset, error) {
	if _, err := m.begin(OpGetDataset, true); err != nil {
		return Dataset{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ds := range m.data.Datasets {
		if ds.ID == datasetID {
			return ds, nil
		}
	}
	return Dataset{}, &Error{Kind: KindNotFound, Op: OpGetDataset, Status: http.StatusNotFound, Message: "Dataset not found"}
}

// CreateDashboard implements DashboardAPI.
func (m *Mock) CreateDashboard(_ context.Context, datasetID string) (DashboardRef, error) {
	if _, err := m.begin(OpCreateDashboard, true); err != nil {
		return DashboardRef{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dash, ok := m.data.Dashboards[datasetID]
	if !ok {
		return DashboardRef{}, &Error{Kind: KindNotFound, Op: OpCreateDashboard, Status: http.StatusNotFound, Message: "Dataset not found"}
	}
	return DashboardRef{ID: dash.ID}, nil
}

// DashboardByDataset implements DashboardAPI.
func (m *Mock) DashboardByDataset(_ context.Context, datasetID string) (Dashboard, error) {
	if _, err := m.begin(OpDashboardByDataset, true); err != nil {
		return Dashboard{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dash, ok := m.data.Dashboards[datasetID]
	if !ok {
		return Dashboard{}, &Error{Kind: KindNotFound, Op: OpDashboardByDataset, Status: http.StatusNotFound, Message: "Dashboard not found for dataset"}
	}
	return cloneDashboard(dash), nil
}

// GenerateInsights implements InsightAPI.
func (m *Mock) GenerateInsights(_ context.Context, datasetID string) error {
	if _, err := m.begin(OpGenerateInsights, true); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.generated[datasetID]; !ok {
		m.generated[datasetID] = 0
	}
	return nil
}

// Insights implements InsightAPI. Insights are reported not ready until
// generation was requested and InsightsAfter fetches have happened.
func (m *Mock) Insights(_ context.Context, datasetID string) (InsightSet, error) {
	if _, err := m.begin(OpInsights, true); err != nil {
		return InsightSet{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	notReady := &Error{Kind: KindNotReady, Op: OpInsights, Status: http.StatusNotFound, Message: "Insights not generated yet"}
	seen, requested := m.generated[datasetID]
	set, exists := m.data.Insights[datasetID]
	if !requested || !exists {
		return InsightSet{}, notReady
	}
	if seen < m.data.InsightsAfter {
		m.generated[datasetID] = seen + 1
		return InsightSet{}, notReady
	}
	return cloneInsights(set), nil
}

func cloneDashboard(d Dashboard) Dashboard {
	out := d
	out.Widgets = make([]WidgetPayload, len(d.Widgets))
	for i, w := range d.Widgets {
		cp := w
		if w.Data != nil {
			cp.Data = make([]map[string]any, len(w.Data))
			for j, row := range w.Data {
				next := make(map[string]any, len(row))
				for k, v := range row {
					next[k] = v
				}
				cp.Data[j] = next
			}
		}
		out.Widgets[i] = cp
	}
	return out
}

func cloneInsights(set InsightSet) InsightSet {
	out := set
	out.Insights = append([]Insight(nil), set.Insights...)
	return out
}
