package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-insights/internal/broadcast"
	"github.com/goliatone/go-insights/internal/logger"
	"github.com/goliatone/go-insights/pkg/client"
)

// Status is the coarse authentication state.
type Status int

const (
	StatusUnknown Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session. User is set only when authenticated.
type State struct {
	Status Status
	User   *client.UserProfile
}

// Authenticated reports whether a verified user is present.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

var errMissingCredentials = errors.New("session: email and password are required")

// Options configures a Manager.
type Options struct {
	API    client.AuthAPI
	Tokens TokenStore
	Logger *logger.Logger
}

// Manager owns the single session: the stored credential and the verified user.
type Manager struct {
	api    client.AuthAPI
	tokens TokenStore
	log    *logger.Logger
	hub    *broadcast.Hub[State]

	mu    sync.RWMutex
	state State
	epoch uint64
}

// NewManager builds a Manager in the Unknown state.
func NewManager(opts Options) (*Manager, error) {
	if opts.API == nil {
		return nil, errors.New("session: auth api is required")
	}
	if opts.Tokens == nil {
		opts.Tokens = NewMemoryTokenStore()
	}
	return &Manager{
		api:    opts.API,
		tokens: opts.Tokens,
		log:    logger.OrNop(opts.Logger),
		hub:    broadcast.New[State](8),
	}, nil
}

// Tokens exposes the credential store so gateways can share it.
func (m *Manager) Tokens() TokenStore {
	return m.tokens
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe streams state changes until cancel is called.
func (m *Manager) Subscribe() (<-chan State, func()) {
	return m.hub.Subscribe()
}

// Start resolves the initial state from the stored credential.
func (m *Manager) Start(ctx context.Context) error {
	return m.Refresh(ctx)
}

// Refresh re-verifies the stored credential against the server. Any failure
// discards the credential.
func (m *Manager) Refresh(ctx context.Context) error {
	if _, ok := m.tokens.Get(); !ok {
		m.setState(m.currentEpoch(), State{Status: StatusAnonymous})
		return nil
	}
	return m.fetchUser(ctx)
}

// Login exchanges credentials for a token, stores it and verifies it.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errMissingCredentials
	}
	resp, err := m.api.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.log.Info("login rejected", "email", email, "error", err)
		return err
	}
	if err := m.tokens.Set(resp.AccessToken); err != nil {
		return fmt.Errorf("session: store token: %w", err)
	}
	return m.fetchUser(ctx)
}

// Register creates an account and signs in. Backends that return no token on
// registration are followed by a login with the same credentials.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errMissingCredentials
	}
	req := client.RegisterRequest{Email: email, Password: password}
	if name = strings.TrimSpace(name); name != "" {
		req.Name = &name
	}
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		m.log.Info("registration rejected", "email", email, "error", err)
		return err
	}
	if resp.AccessToken == "" {
		return m.Login(ctx, email, password)
	}
	if err := m.tokens.Set(resp.AccessToken); err != nil {
		return fmt.Errorf("session: store token: %w", err)
	}
	return m.fetchUser(ctx)
}

// Logout discards the credential and the user. It never calls the server
// and is safe to call repeatedly.
func (m *Manager) Logout() {
	if err := m.tokens.Clear(); err != nil {
		m.log.Warn("clear credential failed", "error", err)
	}
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.mu.Unlock()
	m.setState(epoch, State{Status: StatusAnonymous})
}

// HandleError forces a silent logout when err reports a missing or rejected
// credential. It reports whether it did so.
func (m *Manager) HandleError(err error) bool {
	if err == nil || !client.IsUnauthenticated(err) {
		return false
	}
	m.log.Info("credential rejected, signing out", "error", err)
	m.Logout()
	return true
}

func (m *Manager) fetchUser(ctx context.Context) error {
	epoch := m.currentEpoch()
	m.setState(epoch, State{Status: StatusLoading})

	profile, err := m.api.Me(ctx)
	if err != nil {
		if m.currentEpoch() == epoch {
			if clearErr := m.tokens.Clear(); clearErr != nil {
				m.log.Warn("clear credential failed", "error", clearErr)
			}
		}
		m.setState(epoch, State{Status: StatusAnonymous})
		return err
	}
	if !m.setState(epoch, State{Status: StatusAuthenticated, User: &profile}) {
		return errSessionEnded
	}
	m.log.Debug("session verified", "user_id", profile.ID)
	return nil
}

var errSessionEnded = errors.New("session: signed out while verifying credential")

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// setState applies next unless a logout happened after epoch was read.
func (m *Manager) setState(epoch uint64, next State) bool {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	changed := m.state.Status != next.Status || m.state.User != next.User
	m.state = next
	m.mu.Unlock()
	if changed {
		m.hub.Publish(next)
	}
	return true
}
