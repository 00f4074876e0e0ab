package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-insights/internal/logger"
)

// DefaultBaseURL is used when no backend origin is configured.
const DefaultBaseURL = "http://localhost:8000"

const maxErrorBody = 1 << 20

// HTTPConfig configures the HTTP gateway.
type HTTPConfig struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Logger     *logger.Logger
	UserAgent  string
	RequestID  func() string
}

// HTTPClient talks to the insights backend. Every call is a single attempt;
// failures are returned to the caller unchanged.
type HTTPClient struct {
	baseURL   string
	tokens    TokenSource
	client    *http.Client
	log       *logger.Logger
	userAgent string
	requestID func() string
}

var _ API = (*HTTPClient)(nil)

// NewHTTPClient builds a gateway for the configured origin.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("client: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("client: invalid base url %q: %w", cfg.BaseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "go-insights"
	}
	requestID := cfg.RequestID
	if requestID == nil {
		requestID = uuid.NewString
	}
	return &HTTPClient{
		baseURL:   base,
		tokens:    tokens,
		client:    httpClient,
		log:       logger.OrNop(cfg.Logger),
		userAgent: userAgent,
		requestID: requestID,
	}, nil
}

// Register creates an account. Backends that do not issue a token on
// registration yield an empty AuthResponse.
func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, request{
		op:       "register",
		method:   http.MethodPost,
		path:     "/auth/register",
		json:     req,
		fallback: "Registration failed",
	}, &resp)
	return resp, err
}

// Login exchanges credentials for a bearer token.
func (c *HTTPClient) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, request{
		op:       "login",
		method:   http.MethodPost,
		path:     "/auth/login",
		json:     loginBody{Username: req.Email, Email: req.Email, Password: req.Password},
		fallback: "Login failed",
	}, &resp)
	if err == nil && resp.AccessToken == "" {
		return AuthResponse{}, &Error{Kind: KindDecode, Op: "login", Message: "response did not include an access token"}
	}
	return resp, err
}

// Me returns the user bound to the current token.
func (c *HTTPClient) Me(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	err := c.do(ctx, request{op: "me", method: http.MethodGet, path: "/auth/me", auth: true}, &profile)
	return profile, err
}

// Profile returns the user with usage counters.
func (c *HTTPClient) Profile(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	err := c.do(ctx, request{
		op:       "profile",
		method:   http.MethodGet,
		path:     "/users/profile",
		auth:     true,
		fallback: "Failed to load profile",
	}, &profile)
	return profile, err
}

// UploadDataset streams the file as multipart form content under field "file".
func (c *HTTPClient) UploadDataset(ctx context.Context, upload Upload) (Dataset, error) {
	const op = "upload dataset"
	if upload.Body == nil {
		return Dataset{}, &Error{Kind: KindRequest, Op: op, Message: "No file selected"}
	}
	if _, err := c.token(op); err != nil {
		return Dataset{}, err
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = UploadContentType(upload.Filename)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filepath.Base(upload.Filename))))
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, upload.Body)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	var dataset Dataset
	err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/datasets/upload",
		auth:        true,
		body:        pr,
		contentType: form.FormDataContentType(),
		fallback:    "Upload failed",
	}, &dataset)
	return dataset, err
}

// ListDatasets returns every dataset owned by the user.
func (c *HTTPClient) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	if err := c.do(ctx, request{op: "list datasets", method: http.MethodGet, path: "/datasets", auth: true}, &datasets); err != nil {
		return nil, err
	}
	if datasets == nil {
		datasets = []Dataset{}
	}
	return datasets, nil
}

// GetDataset returns a single dataset.
func (c *HTTPClient) GetDataset(ctx context.Context, datasetID string) (Dataset, error) {
	var dataset Dataset
	err := c.do(ctx, request{
		op:     "get dataset",
		method: http.MethodGet,
		path:   "/datasets/" + url.PathEscape(datasetID),
		auth:   true,
	}, &dataset)
	return dataset, err
}

// CreateDashboard persists a generated dashboard for the dataset.
func (c *HTTPClient) CreateDashboard(ctx context.Context, datasetID string) (DashboardRef, error) {
	var ref DashboardRef
	err := c.do(ctx, request{
		op:       "create dashboard",
		method:   http.MethodPost,
		path:     "/dashboards",
		query:    url.Values{"dataset_id": {datasetID}},
		auth:     true,
		fallback: "Failed to generate dashboard",
	}, &ref)
	return ref, err
}

// DashboardByDataset fetches the dashboard layout for a dataset.
func (c *HTTPClient) DashboardByDataset(ctx context.Context, datasetID string) (Dashboard, error) {
	var dash Dashboard
	err := c.do(ctx, request{
		op:       "get dashboard",
		method:   http.MethodGet,
		path:     "/dashboards/by-dataset/" + url.PathEscape(datasetID),
		auth:     true,
		fallback: "Failed to load dashboard",
	}, &dash)
	return dash, err
}

// GenerateInsights asks the backend to start insight generation. The response
// body is ignored.
func (c *HTTPClient) GenerateInsights(ctx context.Context, datasetID string) error {
	return c.do(ctx, request{
		op:     "generate insights",
		method: http.MethodPost,
		path:   "/insights/generate",
		query:  url.Values{"dataset_id": {datasetID}},
		auth:   true,
	}, nil)
}

// Insights fetches generated insights. A 404 is reported as KindNotReady.
func (c *HTTPClient) Insights(ctx context.Context, datasetID string) (InsightSet, error) {
	var set InsightSet
	err := c.do(ctx, request{
		op:     "get insights",
		method: http.MethodGet,
		path:   "/insights/" + url.PathEscape(datasetID),
		auth:   true,
	}, &set)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindNotFound {
		apiErr.Kind = KindNotReady
	}
	return set, err
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	auth        bool
	json        any
	body        io.Reader
	contentType string
	fallback    string
}

func (c *HTTPClient) token(op string) (string, error) {
	token, ok := c.tokens.Get()
	if !ok || token == "" {
		return "", &Error{Kind: KindUnauthenticated, Op: op, Message: ErrUnauthenticated.Message}
	}
	return token, nil
}

func (c *HTTPClient) do(ctx context.Context, r request, target any) error {
	var token string
	if r.auth {
		t, err := c.token(r.op)
		if err != nil {
			closeBody(r.body)
			return err
		}
		token = t
	}

	body := r.body
	contentType := r.contentType
	if r.json != nil {
		payload, err := json.Marshal(r.json)
		if err != nil {
			return fmt.Errorf("client: %s: encode payload: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		closeBody(r.body)
		return fmt.Errorf("client: %s: build request: %w", r.op, err)
	}
	requestID := c.requestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "op", r.op, "request_id", requestID, "error", err)
		return &Error{Kind: KindNetwork, Op: r.op, Message: "no response from server", RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("api request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := parseErrorMessage(raw)
		if message == "" {
			message = r.fallback
		}
		if message == "" {
			message = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		}
		return &Error{
			Kind:      kindForStatus(resp.StatusCode),
			Op:        r.op,
			Status:    resp.StatusCode,
			Message:   message,
			RequestID: requestID,
		}
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &Error{Kind: KindDecode, Op: r.op, Message: "malformed response", Status: resp.StatusCode, RequestID: requestID, Err: err}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

var uploadContentTypes = map[string]string{
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json": "application/json",
}

// UploadContentType maps a dataset filename to the content type the backend
// accepts. Unknown extensions fall back to application/octet-stream.
func UploadContentType(filename string) string {
	if ct, ok := uploadContentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// SupportedUpload reports whether the extension is one the backend accepts.
func SupportedUpload(filename string) bool {
	_, ok := uploadContentTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func closeBody(body io.Reader) {
	if closer, ok := body.(io.Closer); ok {
		_ = closer.Close()
	}
}
