package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docchat/internal/api"
)

// ErrNoActiveDocument means a query was attempted with no document selected.
// Surfaced to the user; no network call is made.
var ErrNoActiveDocument = errors.New("no active document selected")

// Backend is the slice of the API client the chat manager talks to.
type Backend interface {
	Query(ctx context.Context, query, sessionID, documentID string) (*api.QueryResponse, error)
	ChatHistory(ctx context.Context, sessionID string) ([]api.HistoryMessage, error)
	ChatSessions(ctx context.Context) ([]api.SessionInfo, error)
	ClearHistory(ctx context.Context, sessionID string) error
	ClearAllHistory(ctx context.Context) error
}

// Manager owns the session collection and the active-session pointer. All
// mutation goes through it; views read snapshots.
type Manager struct {
	mu       sync.Mutex
	backend  Backend
	sessions []*Session // most recently created first
	activeID string
	loaded   map[string]bool // session ids whose history was fetched this run
	sending  bool
	active   *DocumentRef

	now func() time.Time
}

func NewManager(backend Backend) *Manager {
	return &Manager{
		backend: backend,
		loaded:  make(map[string]bool),
		now:     time.Now,
	}
}

// ========== Bootstrap ==========

// Restore adopts the backend's session list for the logged-in identity. Zero
// sessions means a fresh one is synthesized with the greeting. The first
// restored session becomes active and its history is loaded immediately, so
// the chat view never renders it empty; the rest load lazily on select. Any
// failure is returned untouched; the caller treats it as fail-closed and
// drops the persisted credentials.
func (m *Manager) Restore(ctx context.Context) error {
	infos, err := m.backend.ChatSessions(ctx)
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	m.mu.Lock()
	if len(infos) == 0 {
		m.newSessionLocked()
		m.mu.Unlock()
		return nil
	}

	m.sessions = m.sessions[:0]
	for _, info := range infos {
		created, _ := time.Parse(time.RFC3339, info.LastTimestamp)
		m.sessions = append(m.sessions, &Session{ID: info.SessionID, CreatedAt: created})
	}
	active := m.sessions[0].ID
	m.activeID = active
	m.mu.Unlock()

	if err := m.SelectSession(ctx, active); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	return nil
}

// ========== Sessions ==========

// NewSession creates a session seeded with the greeting, inserts it before
// all existing sessions and makes it active.
func (m *Manager) NewSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newSessionLocked()
}

func (m *Manager) newSessionLocked() *Session {
	now := m.now()
	id := fmt.Sprintf("chat_%d", now.UnixMilli())
	for m.findLocked(id) != nil {
		// Same-millisecond collision; nudge forward.
		now = now.Add(time.Millisecond)
		id = fmt.Sprintf("chat_%d", now.UnixMilli())
	}

	sess := &Session{
		ID:        id,
		CreatedAt: now,
		Messages:  []Message{greeting(now)},
	}
	m.sessions = append([]*Session{sess}, m.sessions...)
	m.activeID = id
	m.loaded[id] = true
	return sess
}

// SelectSession makes the session active, fetching its history from the
// backend the first time it is opened this run. An empty history is replaced
// by the greeting; a session is never shown empty.
func (m *Manager) SelectSession(ctx context.Context, id string) error {
	m.mu.Lock()
	needsLoad := !m.loaded[id]
	m.mu.Unlock()

	var msgs []Message
	if needsLoad {
		history, err := m.backend.ChatHistory(ctx, id)
		if err != nil {
			return err
		}
		msgs = fromHistory(history)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.findLocked(id)
	if sess == nil {
		sess = &Session{ID: id, CreatedAt: m.now()}
		m.sessions = append([]*Session{sess}, m.sessions...)
	}
	if needsLoad {
		if len(msgs) == 0 {
			msgs = []Message{greeting(m.now())}
		}
		sess.Messages = msgs
		m.loaded[id] = true
	}
	m.activeID = id
	return nil
}

func (m *Manager) findLocked(id string) *Session {
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Sessions returns the collection, most recently created first.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// Active returns the active session, nil when none is selected.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(m.activeID)
}

// ========== Active document ==========

// SetActiveDocument receives the registry's published active document.
func (m *Manager) SetActiveDocument(ref *DocumentRef) {
	m.mu.Lock()
	m.active = ref
	m.mu.Unlock()
}

func (m *Manager) ActiveDocument() *DocumentRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ========== Sending ==========

// Sending reports whether a query is in flight.
func (m *Manager) Sending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending
}

// SendMessage runs one chat turn against the active document. Blank input
// and overlapping sends are silent no-ops. A missing active document fails
// fast with ErrNoActiveDocument before any network call. The user message is
// appended optimistically; a backend failure appends a synthetic assistant
// error message instead of propagating.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	if text == "" || m.sending {
		m.mu.Unlock()
		return nil
	}
	if m.active == nil {
		m.mu.Unlock()
		return ErrNoActiveDocument
	}
	sess := m.findLocked(m.activeID)
	if sess == nil {
		sess = m.newSessionLocked()
	}
	sess.Messages = append(sess.Messages, Message{
		Role:      RoleUser,
		Content:   text,
		Timestamp: m.now().UTC().Format(time.RFC3339),
	})
	m.sending = true
	sessionID := sess.ID
	documentID := m.active.TaskID
	m.mu.Unlock()

	resp, err := m.backend.Query(ctx, text, sessionID, documentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sending = false

	if err != nil {
		sess.Messages = append(sess.Messages, Message{
			Role:      RoleAssistant,
			Content:   "Sorry, something went wrong answering that: " + err.Error(),
			Timestamp: m.now().UTC().Format(time.RFC3339),
			Error:     true,
		})
		return nil
	}

	confidence := resp.Confidence
	sources := resp.SourcesUsed
	sess.Messages = append(sess.Messages, Message{
		Role:        RoleAssistant,
		Content:     resp.Answer,
		Timestamp:   m.now().UTC().Format(time.RFC3339),
		Confidence:  &confidence,
		SourcesUsed: &sources,
	})
	return nil
}

// ========== Clearing ==========

// ClearActive deletes the active session's backend history and reseeds it
// with the greeting.
func (m *Manager) ClearActive(ctx context.Context) error {
	m.mu.Lock()
	id := m.activeID
	m.mu.Unlock()
	if id == "" {
		return nil
	}
	if err := m.backend.ClearHistory(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess := m.findLocked(id); sess != nil {
		sess.Messages = []Message{greeting(m.now())}
	}
	return nil
}

// ClearAll deletes every session on the backend, then drops local state. On
// backend failure local sessions and the active pointer are left untouched;
// nothing is cleared optimistically.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.backend.ClearAllHistory(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = nil
	m.activeID = ""
	m.loaded = make(map[string]bool)
	return nil
}

// Reset drops all local chat state. Used on logout.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = nil
	m.activeID = ""
	m.loaded = make(map[string]bool)
	m.sending = false
	m.active = nil
}
