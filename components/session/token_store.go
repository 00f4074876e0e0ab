package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/securecookie"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-insights/internal/logger"
)

// TokenKey is the storage key the bearer token is persisted under.
const TokenKey = "token"

// TokenStore persists the single bearer credential. It satisfies
// client.TokenSource so it can be handed to the gateway directly.
type TokenStore interface {
	Get() (string, bool)
	Set(token string) error
	Clear() error
}

// MemoryTokenStore keeps the token for the lifetime of the process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryTokenStore) Set(token string) error {
	if token == "" {
		return errEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

var errEmptyToken = errors.New("session: token is empty")

// FileOption customises a FileTokenStore.
type FileOption func(*FileTokenStore)

// WithSealing encodes the stored token with securecookie. hashKey is
// required for sealing; blockKey additionally encrypts the value.
func WithSealing(hashKey, blockKey []byte) FileOption {
	return func(s *FileTokenStore) {
		if len(hashKey) == 0 {
			return
		}
		if len(blockKey) == 0 {
			blockKey = nil
		}
		s.codec = securecookie.New(hashKey, blockKey).MaxAge(0)
	}
}

// WithLogger attaches a logger used to report unreadable credential files.
func WithLogger(l *logger.Logger) FileOption {
	return func(s *FileTokenStore) {
		s.log = logger.OrNop(l)
	}
}

// FileTokenStore keeps the token in a 0600 YAML file so it survives restarts.
type FileTokenStore struct {
	mu    sync.Mutex
	path  string
	codec *securecookie.SecureCookie
	log   *logger.Logger
}

// DefaultTokenPath returns <user config dir>/insights/credentials.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("session: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "insights", "credentials"), nil
}

// NewFileTokenStore builds a store backed by path.
func NewFileTokenStore(path string, opts ...FileOption) (*FileTokenStore, error) {
	if path == "" {
		return nil, errors.New("session: token file path is required")
	}
	s := &FileTokenStore{path: path, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the credential file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Get returns the stored token. Missing or undecodable files read as absent.
func (s *FileTokenStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("credential file unreadable", "path", s.path, "error", err)
		}
		return "", false
	}
	doc := map[string]string{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		s.log.Warn("credential file malformed", "path", s.path, "error", err)
		return "", false
	}
	value := doc[TokenKey]
	if value == "" {
		return "", false
	}
	if s.codec == nil {
		return value, true
	}
	var token string
	if err := s.codec.Decode(TokenKey, value, &token); err != nil {
		s.log.Warn("credential file could not be unsealed", "path", s.path, "error", err)
		return "", false
	}
	return token, token != ""
}

// Set writes the token atomically with mode 0600.
func (s *FileTokenStore) Set(token string) error {
	if token == "" {
		return errEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	value := token
	if s.codec != nil {
		sealed, err := s.codec.Encode(TokenKey, token)
		if err != nil {
			return fmt.Errorf("session: seal token: %w", err)
		}
		value = sealed
	}
	payload, err := yaml.Marshal(map[string]string{TokenKey: value})
	if err != nil {
		return fmt.Errorf("session: encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session: write credentials: %w", err)
	}
	return nil
}

// Clear removes the credential file. Clearing an empty store is not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: clear credentials: %w", err)
	}
	return nil
}
