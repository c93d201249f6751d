package chat

import (
	"time"

	"docchat/internal/api"
)

// Role is the closed set of message authors.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable chat turn. Confidence and SourcesUsed are only
// meaningful for assistant messages; Error marks a synthetic assistant
// message standing in for a failed query.
type Message struct {
	Role        Role     `json:"role"`
	Content     string   `json:"content"`
	Timestamp   string   `json:"timestamp"`
	Confidence  *float64 `json:"confidence,omitempty"`
	SourcesUsed *int     `json:"sources_used,omitempty"`
	Error       bool     `json:"error,omitempty"`
}

// Session is one conversation thread. IDs are client-generated
// ("chat_<epoch-ms>") for local sessions or adopted verbatim from the
// backend for restored ones.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// DocumentRef is the read-only reference the registry publishes for the
// currently active document. The chat manager never owns the document.
type DocumentRef struct {
	TaskID   string
	Filename string
}

const greetingText = "Hello! I'm your document assistant. Upload a document and ask me anything about it."

func greeting(now time.Time) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   greetingText,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

func fromHistory(msgs []api.HistoryMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			Role:        Role(m.Role),
			Content:     m.Content,
			Timestamp:   m.Timestamp,
			Confidence:  m.Confidence,
			SourcesUsed: m.SourcesUsed,
		})
	}
	return out
}
