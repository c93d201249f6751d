// Package watch tracks in-flight uploads: transfer progress, the backend's
// processing phase, and the short grace period a finished upload stays
// visible before it is dropped from the tracker.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"docchat/internal/api"
	"docchat/internal/filecheck"
)

// Status values an Entry moves through. Uploading covers the transfer,
// then the backend's own processing_status string takes over.
const (
	StatusUploading = "uploading"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Entry is the visible state of one upload. Progress is 0-100.
type Entry struct {
	Filename string
	Progress int
	Status   string
	Message  string
}

// Backend is the slice of the API client the monitor talks to.
type Backend interface {
	Upload(ctx context.Context, filename string, src io.Reader, size int64, progress api.ProgressFunc) (*api.UploadResponse, error)
	ProcessingStatus(ctx context.Context, taskID string) (*api.ProcessingStatus, error)
}

type Monitor struct {
	mu      sync.Mutex
	backend Backend
	// entries is keyed by filename: re-uploading the same name replaces the
	// old entry rather than showing two.
	entries map[string]*Entry

	// onRefresh fires exactly once per upload that reaches completed; the
	// caller hangs the registry refresh off it.
	onRefresh func()

	// PollInterval and Grace are the status cadence and the post-completion
	// linger. Tests shrink both.
	PollInterval time.Duration
	Grace        time.Duration
}

func New(backend Backend, onRefresh func()) *Monitor {
	return &Monitor{
		backend:      backend,
		entries:      make(map[string]*Entry),
		onRefresh:    onRefresh,
		PollInterval: 2 * time.Second,
		Grace:        3 * time.Second,
	}
}

// Entries returns a snapshot of the tracked uploads, sorted by filename.
func (m *Monitor) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// Busy reports whether any upload is still transferring or processing.
func (m *Monitor) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Status != StatusCompleted && e.Status != StatusError {
			return true
		}
	}
	return false
}

// Upload validates, sniffs and transfers the file at path, then follows its
// processing to a terminal state. It blocks until the upload leaves the
// tracker (or fails); run it on its own goroutine. Validation failures
// return before any entry is created or any network traffic happens.
func (m *Monitor) Upload(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	filename := filepath.Base(path)
	if err := filecheck.Validate(filename, info.Size()); err != nil {
		return err
	}
	if err := filecheck.Sniff(path); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry := &Entry{Filename: filename, Status: StatusUploading}
	m.mu.Lock()
	m.entries[filename] = entry
	m.mu.Unlock()

	resp, err := m.backend.Upload(ctx, filename, f, info.Size(), func(frac float64) {
		m.mu.Lock()
		entry.Progress = int(frac * 100)
		m.mu.Unlock()
	})
	if err != nil {
		m.fail(entry, err)
		return err
	}

	return m.follow(ctx, entry, resp.TaskID)
}

// follow polls processing status until completed or error. A transport
// failure mid-poll marks the entry failed and stops; the entry is retained
// so the user sees what happened.
func (m *Monitor) follow(ctx context.Context, entry *Entry, taskID string) error {
	for {
		status, err := m.backend.ProcessingStatus(ctx, taskID)
		if err != nil {
			m.fail(entry, err)
			return err
		}

		m.mu.Lock()
		entry.Status = status.Status
		entry.Progress = int(status.Progress)
		entry.Message = status.Message
		m.mu.Unlock()

		switch status.Status {
		case StatusCompleted:
			if m.onRefresh != nil {
				m.onRefresh()
			}
			m.removeAfterGrace(ctx, entry)
			return nil
		case StatusError:
			return fmt.Errorf("processing %s: %s", entry.Filename, status.Message)
		}

		select {
		case <-ctx.Done():
			m.fail(entry, ctx.Err())
			return ctx.Err()
		case <-time.After(m.PollInterval):
		}
	}
}

// removeAfterGrace keeps a completed entry visible briefly, then drops it.
func (m *Monitor) removeAfterGrace(ctx context.Context, entry *Entry) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.Grace):
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// A newer upload of the same filename may have replaced this entry;
	// only the entry still owning its slot removes itself.
	if m.entries[entry.Filename] == entry {
		delete(m.entries, entry.Filename)
	}
}

func (m *Monitor) fail(entry *Entry, err error) {
	m.mu.Lock()
	entry.Status = StatusError
	entry.Message = err.Error()
	m.mu.Unlock()
}
