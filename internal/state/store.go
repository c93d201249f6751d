package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docchat/internal/crypto"
)

// Identity is the logged-in user as reported by the backend at login time.
type Identity struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// persisted is the on-disk shape of the client state file. Every field is
// optional; a missing key reads as logged out / feature disabled.
type persisted struct {
	AccessToken  string    `json:"access_token,omitempty"`
	Identity     *Identity `json:"identity,omitempty"`
	LoginTime    string    `json:"login_time,omitempty"`
	DemoMode     bool      `json:"demo_mode,omitempty"`
	DemoIngested bool      `json:"demo_files_ingested,omitempty"`
}

// Store is the durable client-side state: access token, identity, login
// timestamp and the demo-mode flags. It is a single JSON file with an
// explicit load/save pair; every mutation saves.
type Store struct {
	mu   sync.RWMutex
	path string
	data persisted
}

// Open loads the state file at path, creating parent directories as needed.
// A missing file is not an error; it means a fresh, logged-out state.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state path must be provided")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.data); err != nil {
		// A corrupt state file is treated as logged out rather than fatal.
		s.data = persisted{}
	}

	// The token is encrypted at rest. An undecryptable token (moved state
	// file, key change) reads as logged out.
	token, err := crypto.Decrypt(s.data.AccessToken)
	if err != nil {
		s.data.AccessToken = ""
		s.data.Identity = nil
		s.data.LoginTime = ""
	} else {
		s.data.AccessToken = token
	}
	return s, nil
}

func (s *Store) save() error {
	out := s.data
	enc, err := crypto.Encrypt(out.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	out.AccessToken = enc

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// SaveCredentials persists the token and identity issued at login.
func (s *Store) SaveCredentials(token string, id Identity, loginTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AccessToken = token
	s.data.Identity = &id
	s.data.LoginTime = loginTime.UTC().Format(time.RFC3339)
	return s.save()
}

// ClearCredentials removes token, identity and login time. Demo-mode flags
// survive logout.
func (s *Store) ClearCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AccessToken = ""
	s.data.Identity = nil
	s.data.LoginTime = ""
	return s.save()
}

// Token returns the persisted access token, empty if logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AccessToken
}

// Credentials reports the persisted identity. ok is false unless both a
// token and an identity are present.
func (s *Store) Credentials() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.AccessToken == "" || s.data.Identity == nil {
		return Identity{}, false
	}
	return *s.data.Identity, true
}

func (s *Store) DemoMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DemoMode
}

func (s *Store) SetDemoMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.DemoMode = on
	return s.save()
}

func (s *Store) DemoIngested() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DemoIngested
}

func (s *Store) SetDemoIngested(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.DemoIngested = done
	return s.save()
}
