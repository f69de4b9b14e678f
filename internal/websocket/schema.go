package websocket

import (
	"github.com/google/uuid"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing      Action = "ping"
	ActionHeartbeat Action = "heartbeat"
	ActionSync      Action = "sync"
)

// Request is the single client→server message shape; Action selects the
// behavior.
type Request struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventPong         Event = "pong"
	EventHeartbeatAck Event = "heartbeat_ack"
	EventTimer        Event = "timer"
	EventTerminated   Event = "terminated"
)

type PongResponse struct {
	Event Event `json:"event"`
}

// TimerResponse carries the authoritative remaining time. Sent in reply to
// sync actions and as heartbeat acknowledgements.
type TimerResponse struct {
	Event         Event               `json:"event"`
	Status        model.SessionStatus `json:"status"`
	RemainingSecs float64             `json:"time_remaining_seconds"`
}

// TerminatedResponse is pushed when the session reaches a terminal status;
// the connection closes after sending it.
type TerminatedResponse struct {
	Event     Event               `json:"event"`
	SessionID uuid.UUID           `json:"session_id"`
	Status    model.SessionStatus `json:"status"`
	Reason    string              `json:"reason"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
