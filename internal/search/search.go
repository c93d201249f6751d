// Package search keeps an in-memory full-text index over the local chat
// transcripts so the user can find earlier answers without scrolling.
package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"docchat/internal/chat"
)

// Hit is one matching chat message.
type Hit struct {
	SessionID string
	Role      string
	Content   string
}

type Index struct {
	mu  sync.Mutex
	idx bleve.Index
}

func New() (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Rebuild replaces the index contents with the given sessions' messages.
// Rebuilding from scratch keeps the index trivially consistent with the chat
// manager; transcripts are small enough that incremental updates aren't worth
// the bookkeeping.
func (s *Index) Rebuild(sessions []*chat.Session) error {
	mapping := bleve.NewIndexMapping()
	fresh, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, sess := range sessions {
		for i, msg := range sess.Messages {
			id := fmt.Sprintf("%s_%d", sess.ID, i)
			err := batch.Index(id, map[string]interface{}{
				"session": sess.ID,
				"role":    string(msg.Role),
				"content": msg.Content,
			})
			if err != nil {
				fresh.Close()
				return fmt.Errorf("index message %s: %w", id, err)
			}
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("rebuild search index: %w", err)
	}

	s.mu.Lock()
	old := s.idx
	s.idx = fresh
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Search runs a match query over message content and returns up to limit hits,
// best first.
func (s *Index) Search(query string, limit int) ([]Hit, error) {
	s.mu.Lock()
	idx := s.idx
	s.mu.Unlock()

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"session", "role", "content"}

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{}
		if v, ok := h.Fields["session"].(string); ok {
			hit.SessionID = v
		}
		if v, ok := h.Fields["role"].(string); ok {
			hit.Role = v
		}
		if v, ok := h.Fields["content"].(string); ok {
			hit.Content = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the underlying index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return nil
	}
	err := s.idx.Close()
	s.idx = nil
	return err
}
