// Package auth holds the client's credentials: the bearer token used to open
// the websocket and the last known user profile, persisted across restarts.
package auth

import (
	"errors"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/pokerlive/internal/fileutil"
)

// CredentialProvider exposes the current session credentials to the
// connection layer.
type CredentialProvider interface {
	// Token returns the current bearer token, and false when logged out
	Token() (string, bool)

	// Authenticated reports whether a user is logged in
	Authenticated() bool
}

// Profile is the last known user profile, mirrored from the account service
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Balance     int    `json:"balance"`
	BorrowTimes int    `json:"borrow_times"`
	Avatar      string `json:"avatar,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
}

// persisted is the on-disk shape of the credential file
type persisted struct {
	Token   string   `json:"token,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
}

// ProfileStore is a file-backed credential store. It is read once at startup
// and written through on login, logout and profile mutation, so a restarted
// client resumes with the same identity.
type ProfileStore struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	token   string
	profile *Profile
}

var _ CredentialProvider = (*ProfileStore)(nil)

// NewProfileStore loads credentials from path. A missing file is a fresh
// logged-out store, not an error; a corrupt file is discarded with a warning.
func NewProfileStore(path string, logger *log.Logger) (*ProfileStore, error) {
	s := &ProfileStore{path: path, logger: logger.WithPrefix("auth")}

	var p persisted
	err := fileutil.ReadJSON(path, &p)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		s.logger.Warn("discarding unreadable credential file", "path", path, "error", err)
	default:
		s.token = p.Token
		s.profile = p.Profile
	}
	return s, nil
}

// Token implements CredentialProvider
func (s *ProfileStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Authenticated implements CredentialProvider
func (s *ProfileStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.profile != nil
}

// Profile returns a copy of the stored profile, or nil when logged out
func (s *ProfileStore) Profile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Login stores a new token and profile and persists them
func (s *ProfileStore) Login(token string, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.profile = profile
	return s.persist()
}

// Logout clears the stored credentials and persists the empty state
func (s *ProfileStore) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.profile = nil
	return s.persist()
}

// UpdateBalance adjusts the profile balance by delta and persists. No-op
// when logged out.
func (s *ProfileStore) UpdateBalance(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	s.profile.Balance += delta
	return s.persist()
}

// SetBalance replaces the profile balance, e.g. from a final-chips result,
// and persists. No-op when logged out.
func (s *ProfileStore) SetBalance(balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	s.profile.Balance = balance
	return s.persist()
}

// persist writes the store to disk. Callers must hold mu.
func (s *ProfileStore) persist() error {
	return fileutil.WriteJSONAtomic(s.path, persisted{
		Token:   s.token,
		Profile: s.profile,
	}, 0o600)
}

// StaticToken is a CredentialProvider for a token supplied directly, e.g.
// from a flag or environment variable.
type StaticToken string

// Token implements CredentialProvider
func (t StaticToken) Token() (string, bool) { return string(t), t != "" }

// Authenticated implements CredentialProvider
func (t StaticToken) Authenticated() bool { return t != "" }
