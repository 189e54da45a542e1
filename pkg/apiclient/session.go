package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Session is the caller identity the client sends with each request. It is
// loaded and saved explicitly by the owning process.
type Session struct {
	mu      sync.RWMutex
	token   string
	userID  string
	isAdmin bool
}

type sessionFile struct {
	Token   string `json:"token"`
	UserID  string `json:"user_id,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// NewSession builds a session from an issued token.
func NewSession(token, userID string, isAdmin bool) *Session {
	return &Session{token: token, userID: userID, isAdmin: isAdmin}
}

// LoadSession reads a session saved by Save. A missing file yields an empty session.
func LoadSession(path string) (*Session, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var stored sessionFile
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return NewSession(stored.Token, stored.UserID, stored.IsAdmin), nil
}

// Save writes the session to path, replacing any previous file atomically.
func (s *Session) Save(path string) error {
	s.mu.RLock()
	stored := sessionFile{Token: s.token, UserID: s.userID, IsAdmin: s.isAdmin}
	s.mu.RUnlock()

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod session: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Token returns the bearer token, empty when signed out.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the user the session belongs to.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// IsAdmin reports the cached admin flag.
func (s *Session) IsAdmin() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isAdmin
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Clear drops the token and identity, used on logout and on 401 responses.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
	s.isAdmin = false
}
