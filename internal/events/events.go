// Package events defines the job events exchanged over NATS between the
// video worker and its callers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventHeader carries the identity and timing of an event.
type EventHeader struct {
	EventID    string    `json:"event_id"`
	WorkflowID string    `json:"workflow_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewHeader creates a header for a workflow. An empty workflowID gets a fresh
// identifier.
func NewHeader(workflowID string) EventHeader {
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	return EventHeader{
		EventID:    uuid.NewString(),
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
	}
}

// VideoJobRequestedEvent asks the worker to run one pipeline for a channel
// and topic.
type VideoJobRequestedEvent struct {
	Header  EventHeader `json:"header"`
	Channel string      `json:"channel"`
	Topic   string      `json:"topic"`
}

// VideoJobCompletedEvent reports the terminal outcome of a job. VideoKey is
// the object store key of the rendered video on success; FailedStage,
// ErrorKind, and Message describe the halt on failure.
type VideoJobCompletedEvent struct {
	Header      EventHeader `json:"header"`
	Channel     string      `json:"channel"`
	Topic       string      `json:"topic"`
	Status      string      `json:"status"`
	VideoKey    string      `json:"video_key,omitempty"`
	FailedStage string      `json:"failed_stage,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	Message     string      `json:"message,omitempty"`
}
