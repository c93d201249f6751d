package api

// Wire types for the document QA backend. Field names follow the backend's
// JSON exactly; the client never reinterprets them.

type UserInfo struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        UserInfo `json:"user"`
}

type ProfileResponse struct {
	Username  string `json:"username"`
	IsAdmin   bool   `json:"is_admin"`
	LoginTime string `json:"login_time"`
}

type UploadResponse struct {
	TaskID   string `json:"task_id"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ProcessingStatus is polled until Status reaches "completed" or "error".
type ProcessingStatus struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

// DocumentInfo lists both "id" and "task_id" because backend versions have
// disagreed about which one they populate; the registry resolves the chain.
type DocumentInfo struct {
	ID               string `json:"id"`
	TaskID           string `json:"task_id"`
	Filename         string `json:"filename"`
	Size             int64  `json:"size"`
	UploadTime       string `json:"upload_time"`
	ProcessingStatus string `json:"processing_status"`
	WordCount        int    `json:"word_count"`
	PageCount        int    `json:"page_count"`
	ExtractionMethod string `json:"extraction_method"`
}

type DocumentListResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

type QueryResponse struct {
	Answer          string  `json:"answer"`
	Confidence      float64 `json:"confidence"`
	SourcesUsed     int     `json:"sources_used"`
	ChunksRetrieved int     `json:"chunks_retrieved"`
}

// HistoryMessage is one stored chat turn. Confidence and SourcesUsed are only
// present on assistant messages.
type HistoryMessage struct {
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Timestamp   string   `json:"timestamp"`
	Confidence  *float64 `json:"confidence,omitempty"`
	SourcesUsed *int     `json:"sources_used,omitempty"`
}

type HistoryResponse struct {
	History []HistoryMessage `json:"history"`
}

type SessionInfo struct {
	SessionID     string `json:"sessionId"`
	LastMessage   string `json:"lastMessage"`
	LastTimestamp string `json:"lastTimestamp"`
	MessageCount  int    `json:"messageCount"`
}

type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type SystemStatus struct {
	SystemHealth       string          `json:"system_health"`
	DocumentsProcessed int             `json:"documents_processed"`
	ActiveSessions     int             `json:"active_sessions"`
	ModelsLoaded       map[string]bool `json:"models_loaded"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}
