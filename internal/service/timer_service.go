package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/clock"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// TimerAuthority answers "how much time is left" from the server clock and
// the immutable server_deadline. Client clocks never influence the answer:
// a sync with a skewed client returns the server's truth and, when the
// deadline has passed, finalizes the session in the same call.
type TimerAuthority struct {
	manager   *SessionManager
	finalizer *SubmissionFinalizer
	clk       clock.Clock
	log       zerolog.Logger
}

// NewTimerAuthority creates a new TimerAuthority.
func NewTimerAuthority(manager *SessionManager, finalizer *SubmissionFinalizer, clk clock.Clock, log zerolog.Logger) *TimerAuthority {
	return &TimerAuthority{
		manager:   manager,
		finalizer: finalizer,
		clk:       clk,
		log:       log.With().Str("component", "timer_authority").Logger(),
	}
}

// Remaining computes the seconds left on a session, clamped at zero. For a
// terminal session the answer is always zero.
func (t *TimerAuthority) Remaining(s *model.Session) float64 {
	if s.Status.IsTerminal() {
		return 0
	}
	left := s.ServerDeadline.Sub(t.clk.Now())
	if left < 0 {
		return 0
	}
	return left.Seconds()
}

// Sync reports the authoritative remaining time for a session. When the
// deadline has already passed the session is expired here and now, so the
// client that asked learns about its expiry in the same response.
func (t *TimerAuthority) Sync(ctx context.Context, sessionID uuid.UUID) (*model.Session, float64, error) {
	s, err := t.manager.Get(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	if s.Status == model.SessionStatusInProgress && !t.clk.Now().Before(s.ServerDeadline) {
		s, err = t.finalizer.AutoSubmit(ctx, sessionID, model.ReasonTimeout)
		if err != nil {
			return nil, 0, err
		}
	}

	return s, t.Remaining(s), nil
}

// SweepOverdue expires every IN_PROGRESS session whose deadline has passed.
// Run periodically so sessions whose clients vanished without a final sync
// still terminate close to their deadline.
func (t *TimerAuthority) SweepOverdue(ctx context.Context) (int, error) {
	overdue, err := t.manager.sessions.ListOverdue(ctx, t.clk.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		if _, err := t.finalizer.AutoSubmit(ctx, overdue[i].ID, model.ReasonTimeout); err != nil {
			t.log.Error().Err(err).Str("session_id", overdue[i].ID.String()).Msg("Failed to expire overdue session")
			continue
		}
		expired++
	}

	if expired > 0 {
		t.log.Info().Int("expired", expired).Msg("Overdue sweep completed")
	}
	return expired, nil
}
