package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docchat/internal/state"
)

// fakeCreds is an in-memory CredentialStore.
type fakeCreds struct {
	mu      sync.Mutex
	token   string
	id      *state.Identity
	cleared int
}

func (f *fakeCreds) SaveCredentials(token string, id state.Identity, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.id = &id
	return nil
}

func (f *fakeCreds) ClearCredentials() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.id = nil
	f.cleared++
	return nil
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func TestLogin_PersistsCredentialsAndBearer(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["username"] != "alice" || req["password"] != "pw" {
				t.Errorf("login payload = %v", req)
			}
			json.NewEncoder(w).Encode(LoginResponse{
				AccessToken: "tok-xyz",
				TokenType:   "bearer",
				User:        UserInfo{Username: "alice", IsAdmin: true},
			})
		case "/api/user/profile":
			sawAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(ProfileResponse{Username: "alice", IsAdmin: true})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	creds := &fakeCreds{}
	c := New(srv.URL, creds)

	resp, err := c.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.User.Username != "alice" || !resp.User.IsAdmin {
		t.Errorf("user = %+v", resp.User)
	}
	if creds.Token() != "tok-xyz" {
		t.Errorf("persisted token = %q, want tok-xyz", creds.Token())
	}

	if _, err := c.Profile(context.Background()); err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if sawAuth != "Bearer tok-xyz" {
		t.Errorf("Authorization = %q, want Bearer tok-xyz", sawAuth)
	}
}

func TestNew_AdoptsPersistedToken(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(ProfileResponse{Username: "bob"})
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeCreds{token: "restored-tok"})
	if _, err := c.Profile(context.Background()); err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if sawAuth != "Bearer restored-tok" {
		t.Errorf("Authorization = %q, want restored token", sawAuth)
	}
}

func TestRequestError_MessagePreference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		if r.URL.Path == "/api/user/profile" {
			json.NewEncoder(w).Encode(map[string]interface{}{"error": "token expired", "status_code": 401})
		} else {
			json.NewEncoder(w).Encode(map[string]string{"detail": "invalid credentials"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeCreds{})

	_, err := c.Profile(context.Background())
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Status != 401 || re.Message != "token expired" {
		t.Errorf("error = %+v, want 401/token expired", re)
	}

	_, err = c.Login(context.Background(), "x", "y")
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Message != "invalid credentials" {
		t.Errorf("message = %q, want detail fallback", re.Message)
	}
}

func TestLogout_ClearsEvenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "tok"}
	c := New(srv.URL, creds)

	if err := c.Logout(context.Background()); err == nil {
		t.Error("expected the server error to surface")
	}
	if creds.Token() != "" || creds.cleared != 1 {
		t.Errorf("credentials not cleared: token=%q cleared=%d", creds.Token(), creds.cleared)
	}
	if c.bearer() != "" {
		t.Error("client should drop its token on logout")
	}
}

func TestUpload_MultipartAndProgress(t *testing.T) {
	content := strings.Repeat("hello ", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "notes.txt" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		got, _ := io.ReadAll(f)
		if string(got) != content {
			t.Errorf("body mismatch: got %d bytes, want %d", len(got), len(content))
		}
		json.NewEncoder(w).Encode(UploadResponse{TaskID: "task-1", Filename: "notes.txt"})
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeCreds{})

	var last float64
	resp, err := c.Upload(context.Background(), "notes.txt",
		strings.NewReader(content), int64(len(content)),
		func(frac float64) { last = frac })
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if resp.TaskID != "task-1" {
		t.Errorf("task id = %q", resp.TaskID)
	}
	if last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
}

func TestUpload_MissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeCreds{})
	_, err := c.Upload(context.Background(), "a.txt", strings.NewReader("x"), 1, nil)
	if !errors.Is(err, ErrMissingTaskID) {
		t.Errorf("err = %v, want ErrMissingTaskID", err)
	}
}

func TestQuery_OmitsEmptyDocumentID(t *testing.T) {
	var payloads []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		payloads = append(payloads, req)
		json.NewEncoder(w).Encode(QueryResponse{Answer: "42", Confidence: 0.9, SourcesUsed: 2})
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeCreds{})

	if _, err := c.Query(context.Background(), "q1", "chat_1", "doc-1"); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if _, err := c.Query(context.Background(), "q2", "chat_1", ""); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if payloads[0]["document_id"] != "doc-1" {
		t.Errorf("first payload missing document_id: %v", payloads[0])
	}
	if _, present := payloads[1]["document_id"]; present {
		t.Errorf("empty document_id should be omitted: %v", payloads[1])
	}
}

func TestClearEndpoints(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeCreds{})
	if err := c.ClearHistory(context.Background(), "chat_9"); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	if err := c.ClearAllHistory(context.Background()); err != nil {
		t.Fatalf("ClearAllHistory failed: %v", err)
	}

	want := []string{"DELETE /api/chat/history/chat_9", "DELETE /api/chat/history/clear_all"}
	for i, w := range want {
		if calls[i] != w {
			t.Errorf("call %d = %q, want %q", i, calls[i], w)
		}
	}
}
