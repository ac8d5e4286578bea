package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventCandidatesReady  EventType = "candidates.ready"
	EventMatchProgress    EventType = "match.progress"
	EventSessionCompleted EventType = "session.completed"
	EventSessionFailed    EventType = "session.failed"
)

type Event struct {
	SessionID uuid.UUID   `json:"session_id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type StartedData struct {
	Method string `json:"method"`
}

type CandidatesData struct {
	Total         int `json:"total"`
	FailedFetches int `json:"failed_fetches,omitempty"`
}

type ProgressData struct {
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
	Matched   bool `json:"matched"`
}

type CompletedData struct {
	Matches int    `json:"matches"`
	Reason  string `json:"reason,omitempty"`
}

type FailedData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
