package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after the relay finishes streaming a
	// chat reply.
	EventTypeTurnCompleted = "eduspark.chat.turn_completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a relayed chat
// turn.
type TurnCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	TurnID        string    `json:"turn_id"`
	Model         string    `json:"model"`
	Messages      int       `json:"messages"`
	Deltas        int       `json:"deltas"`
	ReplyLength   int       `json:"reply_length"`
	DurationMs    int64     `json:"duration_ms"`
	Terminated    bool      `json:"terminated"`
	Dropped       int       `json:"dropped,omitempty"`
}

// NewTurnCompletedEvent stamps a new event for the turn stored as turnID.
func NewTurnCompletedEvent(turnID string, now time.Time) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		TurnID:        turnID,
	}
}
