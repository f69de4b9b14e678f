package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. SUBMITTED, AUTO_SUBMITTED,
// EXPIRED and INVALIDATED are terminal; no transition ever leaves them.
type SessionStatus string

const (
	SessionStatusCreated       SessionStatus = "CREATED"
	SessionStatusInProgress    SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted     SessionStatus = "SUBMITTED"
	SessionStatusAutoSubmitted SessionStatus = "AUTO_SUBMITTED"
	SessionStatusExpired       SessionStatus = "EXPIRED"
	SessionStatusInvalidated   SessionStatus = "INVALIDATED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusSubmitted, SessionStatusAutoSubmitted, SessionStatusExpired, SessionStatusInvalidated:
		return true
	}
	return false
}

// Termination reasons recorded on the session when it reaches a terminal
// status. These are part of the audit trail handed to the scoring side.
const (
	ReasonStudentSubmit      = "student-submit"
	ReasonTimeout            = "timeout"
	ReasonStaleHeartbeat     = "stale-heartbeat"
	ReasonViolationThreshold = "violation-threshold"
)

// Session represents one student's timed attempt at one exam.
//
// Version is an optimistic-concurrency counter: the terminal transition is a
// compare-and-set on (status, version), so out of any number of racing
// finalizers exactly one wins. ServerDeadline is fixed at creation and never
// rewritten; remaining time is always recomputed from it.
type Session struct {
	ID                uuid.UUID     `json:"id"`
	StudentID         int           `json:"student_id"`
	ExamID            uuid.UUID     `json:"exam_id"`
	Status            SessionStatus `json:"status"`
	Version           int64         `json:"version"`
	QuestionSeed      int64         `json:"-"`
	ServerStartedAt   time.Time     `json:"server_started_at"`
	ServerDeadline    time.Time     `json:"server_deadline"`
	LastHeartbeatAt   time.Time     `json:"last_heartbeat_at"`
	ViolationCount    int           `json:"violation_count"`
	TerminationReason *string       `json:"termination_reason,omitempty"`
	TerminatedAt      *time.Time    `json:"terminated_at,omitempty"`
}

// SessionSummary is the reconciliation block returned by every
// state-changing endpoint so clients never need a follow-up read.
type SessionSummary struct {
	SessionID     uuid.UUID     `json:"session_id"`
	Status        SessionStatus `json:"status"`
	Version       int64         `json:"version"`
	RemainingSecs float64       `json:"time_remaining_seconds"`
	Reason        *string       `json:"termination_reason,omitempty"`
}

// SubmitRequest is the payload for a voluntary submit. The client echoes the
// version it last observed; a mismatch after retry surfaces as a conflict.
type SubmitRequest struct {
	ExpectedVersion int64 `json:"expected_version" binding:"min=0"`
}

// AutoSubmitRequest is the payload for the system-initiated finalize path.
type AutoSubmitRequest struct {
	Reason string `json:"reason" binding:"required,oneof=timeout stale-heartbeat violation-threshold"`
}
