package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ViolationType enumerates recognized proctoring event kinds.
type ViolationType string

const (
	ViolationTabBlur       ViolationType = "TAB_BLUR"
	ViolationCopyDetected  ViolationType = "COPY_DETECTED"
	ViolationMultipleFaces ViolationType = "MULTIPLE_FACES"
	ViolationDisconnect    ViolationType = "DISCONNECT"
	ViolationOther         ViolationType = "OTHER"
)

// ViolationEvent is an append-only proctoring record. Events are never
// mutated or deleted; ordering by OccurredAt is the audit trail.
type ViolationEvent struct {
	ID         int64           `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Type       ViolationType   `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// LogViolationRequest is the payload for recording an integrity event.
// Metadata is opaque to the engine and stored verbatim.
type LogViolationRequest struct {
	Type     ViolationType   `json:"type" binding:"required,oneof=TAB_BLUR COPY_DETECTED MULTIPLE_FACES DISCONNECT OTHER"`
	Metadata json.RawMessage `json:"metadata" binding:"omitempty"`
}
