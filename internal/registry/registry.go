// Package registry owns the document collection shown in the admin view: it
// refreshes the backend list, derives which document is active, and exposes
// the set-active / toggle-ingested operations. The active document is
// published to a consumer (the chat manager) as a read-only reference.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docchat/internal/api"
)

// ErrMissingDocumentID means the target document has no usable identifier;
// the operation is aborted before any state changes.
var ErrMissingDocumentID = errors.New("document has no identifier")

// DemoTaskIDs is the fixed set of canned documents ingested in demo mode.
// The backend knows exactly these ids; anything else 404s.
var DemoTaskIDs = []string{"demo_graph", "demo_data"}

// Document is one registry entry. At most one entry has IsActive set.
type Document struct {
	TaskID     string
	Filename   string
	UploadTime string
	Status     string
	Size       int64
	IsActive   bool
	Ingested   bool
}

// Backend is the slice of the API client the registry talks to.
type Backend interface {
	ListDocuments(ctx context.Context) ([]api.DocumentInfo, error)
	SetActiveDocument(ctx context.Context, documentID string) error
	SetIngestedStatus(ctx context.Context, documentID string, ingested bool) error
	DemoIngest(ctx context.Context, taskID string) error
	ProcessingStatus(ctx context.Context, taskID string) (*api.ProcessingStatus, error)
}

// Flags is the persisted demo-ingestion completion marker.
type Flags interface {
	DemoIngested() bool
	SetDemoIngested(done bool) error
}

type Registry struct {
	mu      sync.Mutex
	backend Backend
	flags   Flags
	docs    []Document
	publish func(*Document)

	// PollInterval is the demo-ingestion status cadence. Tests shrink it.
	PollInterval time.Duration
}

func New(backend Backend, flags Flags) *Registry {
	return &Registry{
		backend:      backend,
		flags:        flags,
		PollInterval: 2 * time.Second,
	}
}

// SetPublisher registers the active-document consumer. It is called with nil
// when no document qualifies.
func (r *Registry) SetPublisher(fn func(*Document)) {
	r.mu.Lock()
	r.publish = fn
	r.mu.Unlock()
}

// resolveID picks the document identifier by the fixed fallback chain:
// id, then task_id, then filename. The order is load-bearing; keep it.
func resolveID(info api.DocumentInfo) string {
	if info.ID != "" {
		return info.ID
	}
	if info.TaskID != "" {
		return info.TaskID
	}
	return info.Filename
}

// Refresh fetches the document list and re-derives ingested and active
// flags. The active document is the last list entry whose processing has
// completed; the derived pick is then published.
func (r *Registry) Refresh(ctx context.Context) error {
	infos, err := r.backend.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("refresh documents: %w", err)
	}

	docs := make([]Document, 0, len(infos))
	activeIdx := -1
	for i, info := range infos {
		docs = append(docs, Document{
			TaskID:     resolveID(info),
			Filename:   info.Filename,
			UploadTime: info.UploadTime,
			Status:     info.ProcessingStatus,
			Size:       info.Size,
			Ingested:   info.ProcessingStatus == "completed",
		})
		if info.ProcessingStatus == "completed" {
			activeIdx = i
		}
	}
	if activeIdx >= 0 {
		docs[activeIdx].IsActive = true
	}

	r.mu.Lock()
	r.docs = docs
	r.mu.Unlock()

	r.publishActive()
	return nil
}

// Documents returns a snapshot of the registry.
func (r *Registry) Documents() []Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// Active returns a copy of the active document, nil when none qualifies.
func (r *Registry) Active() *Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.docs {
		if r.docs[i].IsActive {
			d := r.docs[i]
			return &d
		}
	}
	return nil
}

func (r *Registry) publishActive() {
	r.mu.Lock()
	fn := r.publish
	r.mu.Unlock()
	if fn != nil {
		fn(r.Active())
	}
}

// Reset drops the cached document list and publishes the absence of an
// active document. Used on logout so nothing leaks into the next login.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.docs = nil
	r.mu.Unlock()
	r.publishActive()
}

// SetActive marks the document at index active, the backend being the source
// of truth. Exactly one local entry ends up active.
func (r *Registry) SetActive(ctx context.Context, index int) error {
	r.mu.Lock()
	if index < 0 || index >= len(r.docs) {
		r.mu.Unlock()
		return fmt.Errorf("document index %d out of range", index)
	}
	id := r.docs[index].TaskID
	r.mu.Unlock()

	if id == "" {
		return ErrMissingDocumentID
	}
	if err := r.backend.SetActiveDocument(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	for i := range r.docs {
		r.docs[i].IsActive = i == index
	}
	r.mu.Unlock()

	r.publishActive()
	return nil
}

// ToggleIngested flips the ingested flag of the document at index. On
// success the target also becomes the active document; this coupling is how
// the product behaves, not an accident of this implementation.
func (r *Registry) ToggleIngested(ctx context.Context, index int) error {
	r.mu.Lock()
	if index < 0 || index >= len(r.docs) {
		r.mu.Unlock()
		return fmt.Errorf("document index %d out of range", index)
	}
	id := r.docs[index].TaskID
	next := !r.docs[index].Ingested
	r.mu.Unlock()

	if id == "" {
		return ErrMissingDocumentID
	}
	if err := r.backend.SetIngestedStatus(ctx, id, next); err != nil {
		return err
	}

	r.mu.Lock()
	r.docs[index].Ingested = next
	for i := range r.docs {
		r.docs[i].IsActive = i == index
	}
	r.mu.Unlock()

	r.publishActive()
	return nil
}
