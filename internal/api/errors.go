package api

import (
	"errors"
	"fmt"
)

// ErrMissingTaskID is returned when an upload succeeds at the HTTP level but
// the response carries no task identifier to poll.
var ErrMissingTaskID = errors.New("upload response missing task_id")

// RequestError is any non-2xx response from the backend. Message is the
// structured error the backend supplied, if any.
type RequestError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Endpoint, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: request failed (status %d)", e.Endpoint, e.Status)
}

// errorBody matches the backend's exception handler output. Older builds of
// the backend return FastAPI's bare {"detail": ...} instead.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (b errorBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Detail
}
