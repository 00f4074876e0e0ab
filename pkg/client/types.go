package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// DatasetStatus is assigned by the server; the client only reads it.
type DatasetStatus string

const (
	StatusProcessing DatasetStatus = "PROCESSING"
	StatusReady      DatasetStatus = "READY"
	StatusFailed     DatasetStatus = "FAILED"
)

// Transitional reports whether the status is expected to change without user action.
func (s DatasetStatus) Transitional() bool {
	return s == StatusProcessing
}

// Dataset is a single uploaded dataset as listed by the API.
type Dataset struct {
	ID       string        `json:"dataset_id" yaml:"dataset_id"`
	Filename string        `json:"filename" yaml:"filename"`
	Status   DatasetStatus `json:"status" yaml:"status"`
}

// UsageStats carries the per-user counters returned by /users/profile.
type UsageStats struct {
	DatasetsUploaded  int `json:"datasets_uploaded" yaml:"datasets_uploaded"`
	DashboardsCreated int `json:"dashboards_created" yaml:"dashboards_created"`
	InsightsGenerated int `json:"insights_generated" yaml:"insights_generated"`
}

// UserProfile is the authenticated user as returned by /auth/me and /users/profile.
type UserProfile struct {
	ID        string     `json:"id" yaml:"id"`
	Email     string     `json:"email" yaml:"email"`
	Name      *string    `json:"name" yaml:"name,omitempty"`
	IsActive  bool       `json:"is_active" yaml:"is_active"`
	CreatedAt Timestamp  `json:"created_at" yaml:"created_at"`
	Stats     UsageStats `json:"stats" yaml:"stats"`
}

// UnmarshalJSON accepts both `id` and the Mongo-style `_id` alias.
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type alias UserProfile
	aux := struct {
		*alias
		LegacyID string `json:"_id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.LegacyID
	}
	return nil
}

// DisplayName returns the profile name or an empty string.
func (u UserProfile) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// Initial is the avatar letter: first letter of the name, else of the email.
func (u UserProfile) Initial() string {
	source := strings.TrimSpace(u.DisplayName())
	if source == "" {
		source = u.Email
	}
	for _, r := range source {
		return strings.ToUpper(string(r))
	}
	return ""
}

// Timestamp parses the naive ISO timestamps emitted by the backend as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("client: timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("client: unrecognized timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// MarshalYAML renders the timestamp as RFC3339.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return "", nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// WidgetPayload mirrors the loosely typed widget JSON. Interpretation of the
// tags happens in the widgets package.
type WidgetPayload struct {
	ID          string           `json:"widget_id" yaml:"widget_id"`
	Type        string           `json:"type" yaml:"type"`
	Metric      string           `json:"metric,omitempty" yaml:"metric,omitempty"`
	Value       *float64         `json:"value,omitempty" yaml:"value,omitempty"`
	Format      *string          `json:"format,omitempty" yaml:"format,omitempty"`
	ChartType   string           `json:"chart_type,omitempty" yaml:"chart_type,omitempty"`
	X           string           `json:"x,omitempty" yaml:"x,omitempty"`
	Y           string           `json:"y,omitempty" yaml:"y,omitempty"`
	Aggregation *string          `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Data        []map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Dashboard is the auto-generated layout for a dataset.
type Dashboard struct {
	ID        string          `json:"dashboard_id" yaml:"dashboard_id"`
	DatasetID string          `json:"dataset_id" yaml:"dataset_id"`
	Title     string          `json:"title" yaml:"title"`
	Widgets   []WidgetPayload `json:"widgets" yaml:"widgets"`
}

// DashboardRef is returned when a dashboard is persisted server-side.
type DashboardRef struct {
	ID string `json:"dashboard_id" yaml:"dashboard_id"`
}

// InsightType tags an insight message.
type InsightType string

const (
	InsightTrend       InsightType = "trend"
	InsightAnomaly     InsightType = "anomaly"
	InsightDataQuality InsightType = "data_quality"
)

// Insight is one generated observation.
type Insight struct {
	Type    InsightType `json:"type" yaml:"type"`
	Message string      `json:"message" yaml:"message"`
}

// InsightSet does not exist until server-side generation completes.
type InsightSet struct {
	DatasetID string    `json:"dataset_id" yaml:"dataset_id"`
	Insights  []Insight `json:"insights" yaml:"insights"`
	Summary   *string   `json:"summary" yaml:"summary,omitempty"`
}

// SummaryText returns the summary or an empty string.
func (s InsightSet) SummaryText() string {
	if s.Summary == nil {
		return ""
	}
	return *s.Summary
}

// LoginRequest carries credentials for /auth/login.
type LoginRequest struct {
	Email    string
	Password string
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// AuthResponse is the token envelope from login (and from register on
// backends that issue a token immediately).
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Upload describes a dataset file to submit.
type Upload struct {
	Filename    string
	Body        io.Reader
	ContentType string
}

type loginBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
