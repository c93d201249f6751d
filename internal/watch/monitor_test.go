package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"docchat/internal/api"
	"docchat/internal/filecheck"
)

type fakeBackend struct {
	mu          sync.Mutex
	uploads     int
	uploadErr   error
	taskID      string
	statuses    []api.ProcessingStatus // consumed front to back, last repeats
	statusErr   error
	statusCalls int
}

func (f *fakeBackend) Upload(ctx context.Context, filename string, src io.Reader, size int64, progress api.ProgressFunc) (*api.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	io.Copy(io.Discard, src)
	if progress != nil {
		progress(1)
	}
	return &api.UploadResponse{TaskID: f.taskID, Filename: filename, Size: size}, nil
}

func (f *fakeBackend) ProcessingStatus(ctx context.Context, taskID string) (*api.ProcessingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	next := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &next, nil
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func newTestMonitor(b Backend, onRefresh func()) *Monitor {
	m := New(b, onRefresh)
	m.PollInterval = time.Millisecond
	m.Grace = 5 * time.Millisecond
	return m
}

func TestUpload_RejectsUnsupportedExtension(t *testing.T) {
	b := &fakeBackend{}
	m := newTestMonitor(b, nil)
	path := writeTempFile(t, "setup.exe", "MZ")

	err := m.Upload(context.Background(), path)
	if !errors.Is(err, filecheck.ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
	if b.uploads != 0 {
		t.Error("rejected file must not reach the network")
	}
	if len(m.Entries()) != 0 {
		t.Error("rejected file must not appear in the tracker")
	}
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	b := &fakeBackend{}
	m := newTestMonitor(b, nil)

	path := filepath.Join(t.TempDir(), "big.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Sparse file: size matters, content doesn't.
	if err := f.Truncate(filecheck.MaxUploadSize); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()

	if err := m.Upload(context.Background(), path); !errors.Is(err, filecheck.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if b.uploads != 0 {
		t.Error("oversized file must not reach the network")
	}
}

func TestUpload_RejectsBinaryMasqueradingAsText(t *testing.T) {
	b := &fakeBackend{}
	m := newTestMonitor(b, nil)
	path := writeTempFile(t, "fake.txt", "looks fine\x00until here")

	if err := m.Upload(context.Background(), path); err == nil {
		t.Fatal("expected sniff rejection")
	}
	if b.uploads != 0 {
		t.Error("sniffed-out file must not reach the network")
	}
}

func TestUpload_FullLifecycle(t *testing.T) {
	refreshes := 0
	b := &fakeBackend{
		taskID: "task-7",
		statuses: []api.ProcessingStatus{
			{Status: "processing", Progress: 40, Message: "extracting"},
			{Status: "processing", Progress: 80, Message: "indexing"},
			{Status: "completed", Progress: 100},
		},
	}
	m := newTestMonitor(b, func() { refreshes++ })
	path := writeTempFile(t, "notes.txt", "plain text content")

	if err := m.Upload(context.Background(), path); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if refreshes != 1 {
		t.Errorf("refresh fired %d times, want exactly 1", refreshes)
	}
	if b.statusCalls < 3 {
		t.Errorf("status polled %d times, want at least 3", b.statusCalls)
	}
	// The grace period ran inside Upload; the entry is gone by the time it
	// returns.
	if got := len(m.Entries()); got != 0 {
		t.Errorf("entries after completion = %d, want 0", got)
	}
}

func TestUpload_ProcessingErrorRetainsEntry(t *testing.T) {
	refreshes := 0
	b := &fakeBackend{
		taskID:   "task-8",
		statuses: []api.ProcessingStatus{{Status: "error", Message: "unreadable document"}},
	}
	m := newTestMonitor(b, func() { refreshes++ })
	path := writeTempFile(t, "bad.txt", "content")

	if err := m.Upload(context.Background(), path); err == nil {
		t.Fatal("expected processing error")
	}
	if refreshes != 0 {
		t.Error("failed processing must not trigger a refresh")
	}
	entries := m.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want the failed entry retained", len(entries))
	}
	if entries[0].Status != StatusError || entries[0].Message != "unreadable document" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestUpload_SameFilenameReplacesEntry(t *testing.T) {
	b := &fakeBackend{
		taskID:   "task-12",
		statuses: []api.ProcessingStatus{{Status: "error", Message: "first attempt failed"}},
	}
	m := newTestMonitor(b, nil)
	path := writeTempFile(t, "report.txt", "content")

	if err := m.Upload(context.Background(), path); err == nil {
		t.Fatal("expected first upload to fail")
	}

	b.mu.Lock()
	b.statuses = []api.ProcessingStatus{{Status: "error", Message: "second attempt failed"}}
	b.mu.Unlock()

	if err := m.Upload(context.Background(), path); err == nil {
		t.Fatal("expected second upload to fail")
	}

	entries := m.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want the re-upload to replace the old entry", len(entries))
	}
	if entries[0].Message != "second attempt failed" {
		t.Errorf("entry message = %q, want the latest upload's", entries[0].Message)
	}
}

func TestUpload_TransportFailureDuringPolling(t *testing.T) {
	b := &fakeBackend{taskID: "task-9", statusErr: errors.New("connection refused")}
	m := newTestMonitor(b, nil)
	path := writeTempFile(t, "doc.txt", "content")

	if err := m.Upload(context.Background(), path); err == nil {
		t.Fatal("expected transport error")
	}
	entries := m.Entries()
	if len(entries) != 1 || entries[0].Status != StatusError {
		t.Fatalf("entries = %+v, want one error entry", entries)
	}
}

func TestUpload_ContextCancelStopsPolling(t *testing.T) {
	b := &fakeBackend{
		taskID:   "task-10",
		statuses: []api.ProcessingStatus{{Status: "processing", Progress: 10}},
	}
	m := newTestMonitor(b, nil)
	m.PollInterval = time.Hour // cancellation must not wait this out
	path := writeTempFile(t, "doc.txt", "content")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Upload(ctx, path) }()

	// Let the first poll land, then cancel.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Upload did not return after cancellation")
	}
}

func TestBusy(t *testing.T) {
	b := &fakeBackend{
		taskID:   "task-11",
		statuses: []api.ProcessingStatus{{Status: "processing", Progress: 10}},
	}
	m := newTestMonitor(b, nil)
	if m.Busy() {
		t.Error("fresh monitor should not be busy")
	}

	path := writeTempFile(t, "doc.txt", "content")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { m.Upload(ctx, path); close(done) }()

	busy := false
	for i := 0; i < 100; i++ {
		if m.Busy() {
			busy = true
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !busy {
		t.Error("monitor should report busy while an upload is processing")
	}
	cancel()
	<-done
}
