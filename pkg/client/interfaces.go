package client

import "context"

// TokenSource supplies the current bearer credential, if any.
type TokenSource interface {
	Get() (string, bool)
}

// AuthAPI covers registration, login and the current-user endpoints.
type AuthAPI interface {
	Register(ctx context.Context, req RegisterRequest) (AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (AuthResponse, error)
	Me(ctx context.Context) (UserProfile, error)
	Profile(ctx context.Context) (UserProfile, error)
}

// DatasetAPI covers dataset upload and listing.
type DatasetAPI interface {
	UploadDataset(ctx context.Context, upload Upload) (Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	GetDataset(ctx context.Context, datasetID string) (Dataset, error)
}

// DashboardAPI fetches or persists generated dashboards.
type DashboardAPI interface {
	CreateDashboard(ctx context.Context, datasetID string) (DashboardRef, error)
	DashboardByDataset(ctx context.Context, datasetID string) (Dashboard, error)
}

// InsightAPI triggers and reads insight generation.
type InsightAPI interface {
	GenerateInsights(ctx context.Context, datasetID string) error
	Insights(ctx context.Context, datasetID string) (InsightSet, error)
}

// API is the union implemented by HTTPClient and Mock.
type API interface {
	AuthAPI
	DatasetAPI
	DashboardAPI
	InsightAPI
}

// StaticToken is a TokenSource holding a fixed value.
type StaticToken string

// Get implements TokenSource.
func (t StaticToken) Get() (string, bool) {
	return string(t), t != ""
}
