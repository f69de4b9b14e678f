package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/clock"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// HeartbeatMonitor tracks session liveness. Clients ping on an interval;
// sessions that stay silent past the grace period are auto-submitted by the
// background sweep, preserving whatever answers were already saved.
type HeartbeatMonitor struct {
	sessions  SessionStore
	finalizer *SubmissionFinalizer
	grace     time.Duration
	clk       clock.Clock
	log       zerolog.Logger
}

// NewHeartbeatMonitor creates a new HeartbeatMonitor.
func NewHeartbeatMonitor(sessions SessionStore, finalizer *SubmissionFinalizer, grace time.Duration, clk clock.Clock, log zerolog.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		sessions:  sessions,
		finalizer: finalizer,
		grace:     grace,
		clk:       clk,
		log:       log.With().Str("component", "heartbeat_monitor").Logger(),
	}
}

// Heartbeat records a liveness ping for an IN_PROGRESS session. A ping
// against a terminated session returns ErrInvalidState so the client learns
// its session is over and stops pinging.
func (h *HeartbeatMonitor) Heartbeat(ctx context.Context, sessionID uuid.UUID) error {
	ok, err := h.sessions.RecordHeartbeat(ctx, sessionID, h.clk.Now())
	if err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	if !ok {
		return fmt.Errorf("session is not in progress: %w", ErrInvalidState)
	}
	return nil
}

// StaleSweep auto-submits every IN_PROGRESS session whose last heartbeat is
// older than the grace period. Sweeping is idempotent: a session another
// trigger already finalized counts as swept, not as an error.
func (h *HeartbeatMonitor) StaleSweep(ctx context.Context) (int, error) {
	cutoff := h.clk.Now().Add(-h.grace)
	stale, err := h.sessions.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	swept := 0
	for i := range stale {
		if _, err := h.finalizer.AutoSubmit(ctx, stale[i].ID, model.ReasonStaleHeartbeat); err != nil {
			h.log.Error().Err(err).Str("session_id", stale[i].ID.String()).Msg("Failed to sweep stale session")
			continue
		}
		swept++
	}

	if swept > 0 {
		h.log.Info().Int("swept", swept).Msg("Stale heartbeat sweep completed")
	}
	return swept, nil
}
