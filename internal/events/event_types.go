package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEntryGranted       EventType = "entry_granted"
	EventEntryDenied        EventType = "entry_denied"
	EventBiometricsEnrolled EventType = "biometrics_enrolled"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID int64       `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EntryDecidedPayload carries the outcome of a gate verification attempt.
type EntryDecidedPayload struct {
	Reason     string   `json:"reason,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// BiometricsEnrolledPayload carries enrollment metadata.
type BiometricsEnrolledPayload struct {
	EmbeddingSize int `json:"embedding_size"`
}
