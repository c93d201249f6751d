package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"docchat/internal/state"
)

// CredentialStore is the durable storage the client writes login side effects
// to. Login persists, logout clears, always.
type CredentialStore interface {
	SaveCredentials(token string, id state.Identity, loginTime time.Time) error
	ClearCredentials() error
	Token() string
}

// Client wraps every backend endpoint, one method per operation. It owns the
// bearer token: login sets it, logout clears it, nothing else touches it.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialStore

	mu    sync.RWMutex
	token string
}

// New builds a client for the backend at baseURL. A previously persisted
// token, if any, is adopted so a restored session can resume.
func New(baseURL string, creds CredentialStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		creds:   creds,
		token:   creds.Token(),
	}
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do issues one JSON request. endpoint is the short operation name carried
// into RequestError so failures identify themselves.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &RequestError{Endpoint: endpoint, Status: resp.StatusCode, Message: eb.message()}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", endpoint, err)
		}
	}
	return nil
}

// ========== Auth ==========

// Login authenticates and, on success, persists token and identity before
// returning.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	req := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "login", "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.setToken(resp.AccessToken)
	id := state.Identity{Username: resp.User.Username, IsAdmin: resp.User.IsAdmin}
	if err := c.creds.SaveCredentials(resp.AccessToken, id, time.Now()); err != nil {
		return nil, fmt.Errorf("login: persist credentials: %w", err)
	}
	return &resp, nil
}

// Logout notifies the backend best-effort; local token and persisted
// credentials are cleared no matter what the network does.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "logout", "/api/auth/logout", nil, nil)
	c.setToken("")
	if clearErr := c.creds.ClearCredentials(); clearErr != nil {
		return clearErr
	}
	return err
}

func (c *Client) Profile(ctx context.Context) (*ProfileResponse, error) {
	var resp ProfileResponse
	if err := c.do(ctx, http.MethodGet, "profile", "/api/user/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ========== Documents ==========

func (c *Client) ProcessingStatus(ctx context.Context, taskID string) (*ProcessingStatus, error) {
	var resp ProcessingStatus
	path := "/api/documents/processing-status/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodGet, "processing-status", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	var resp DocumentListResponse
	if err := c.do(ctx, http.MethodGet, "list-documents", "/api/documents/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *Client) SetActiveDocument(ctx context.Context, documentID string) error {
	path := "/api/documents/" + url.PathEscape(documentID) + "/set_active"
	return c.do(ctx, http.MethodPost, "set-active", path, nil, nil)
}

func (c *Client) SetIngestedStatus(ctx context.Context, documentID string, ingested bool) error {
	path := "/api/documents/" + url.PathEscape(documentID) + "/set_ingested"
	req := map[string]bool{"ingested": ingested}
	return c.do(ctx, http.MethodPost, "set-ingested", path, req, nil)
}

func (c *Client) DemoIngest(ctx context.Context, taskID string) error {
	path := "/api/documents/demo_ingest/" + url.PathEscape(taskID)
	return c.do(ctx, http.MethodPost, "demo-ingest", path, nil, nil)
}

// ========== Chat ==========

func (c *Client) Query(ctx context.Context, query, sessionID, documentID string) (*QueryResponse, error) {
	req := map[string]string{"query": query, "session_id": sessionID}
	if documentID != "" {
		req["document_id"] = documentID
	}
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "query", "/api/chat/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ChatHistory(ctx context.Context, sessionID string) ([]HistoryMessage, error) {
	var resp HistoryResponse
	path := "/api/chat/history/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, "chat-history", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *Client) ChatSessions(ctx context.Context) ([]SessionInfo, error) {
	var resp SessionListResponse
	if err := c.do(ctx, http.MethodGet, "chat-sessions", "/api/chat/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	path := "/api/chat/history/" + url.PathEscape(sessionID)
	return c.do(ctx, http.MethodDelete, "clear-history", path, nil, nil)
}

func (c *Client) ClearAllHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "clear-all-history", "/api/chat/history/clear_all", nil, nil)
}

// ========== System ==========

func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var resp SystemStatus
	if err := c.do(ctx, http.MethodGet, "system-status", "/api/system/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "health", "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
