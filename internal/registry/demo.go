package registry

import (
	"context"
	"fmt"
	"time"
)

// EnsureDemoIngested ingests the canned demo documents, polling until each
// reports completed, then persists the done marker and refreshes the list.
// Already-done is a no-op, so re-enabling demo mode is cheap.
func (r *Registry) EnsureDemoIngested(ctx context.Context) error {
	if r.flags.DemoIngested() {
		return nil
	}

	for _, id := range DemoTaskIDs {
		if err := r.backend.DemoIngest(ctx, id); err != nil {
			return fmt.Errorf("demo ingest %s: %w", id, err)
		}
	}

	pending := make(map[string]bool, len(DemoTaskIDs))
	for _, id := range DemoTaskIDs {
		pending[id] = true
	}

	for len(pending) > 0 {
		for id := range pending {
			status, err := r.backend.ProcessingStatus(ctx, id)
			if err != nil {
				return fmt.Errorf("demo ingest %s: %w", id, err)
			}
			switch status.Status {
			case "completed":
				delete(pending, id)
			case "error":
				return fmt.Errorf("demo ingest %s: %s", id, status.Message)
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}

	if err := r.flags.SetDemoIngested(true); err != nil {
		return fmt.Errorf("persist demo marker: %w", err)
	}
	return r.Refresh(ctx)
}

// ResetDemo clears the persisted demo marker and refreshes the list so the
// view falls back to the user's own documents.
func (r *Registry) ResetDemo(ctx context.Context) error {
	if err := r.flags.SetDemoIngested(false); err != nil {
		return fmt.Errorf("persist demo marker: %w", err)
	}
	return r.Refresh(ctx)
}
