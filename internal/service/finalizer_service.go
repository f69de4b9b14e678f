package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// TerminationNotifier carries the one-time side effects of a terminal
// transition: queueing the result for dispatch and telling any live
// listeners the session is over. Implementations must tolerate being
// called with best-effort semantics: finalization never rolls back
// because a notification failed.
type TerminationNotifier interface {
	EnqueueResult(ctx context.Context, sessionID uuid.UUID) error
	PublishTerminated(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, reason string) error
}

// SubmissionFinalizer converts termination triggers into terminal statuses.
// Every trigger (student submit, timer expiry, stale heartbeat, violation
// threshold) resolves to exactly one TransitionToTerminal call, and side
// effects fire only on the call that actually performed the transition.
type SubmissionFinalizer struct {
	manager  *SessionManager
	notifier TerminationNotifier
	log      zerolog.Logger
}

// NewSubmissionFinalizer creates a new SubmissionFinalizer.
func NewSubmissionFinalizer(manager *SessionManager, notifier TerminationNotifier, log zerolog.Logger) *SubmissionFinalizer {
	return &SubmissionFinalizer{
		manager:  manager,
		notifier: notifier,
		log:      log.With().Str("component", "finalizer").Logger(),
	}
}

// statusForReason maps a termination trigger to its terminal status.
func statusForReason(reason string) (model.SessionStatus, error) {
	switch reason {
	case model.ReasonStudentSubmit:
		return model.SessionStatusSubmitted, nil
	case model.ReasonTimeout:
		return model.SessionStatusExpired, nil
	case model.ReasonStaleHeartbeat, model.ReasonViolationThreshold:
		return model.SessionStatusAutoSubmitted, nil
	default:
		return "", fmt.Errorf("unknown termination reason %q: %w", reason, ErrInvalidState)
	}
}

// Submit finalizes a session on the student's explicit request. The version
// the client last saw guards the compare-and-set; a session already terminal
// returns its existing outcome as success so retried submits are harmless.
func (f *SubmissionFinalizer) Submit(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*model.Session, error) {
	s, transitioned, err := f.manager.TransitionToTerminal(ctx, sessionID, expectedVersion,
		model.SessionStatusSubmitted, model.ReasonStudentSubmit)
	if err != nil {
		return nil, err
	}
	if transitioned {
		f.dispatch(ctx, s)
	}
	return s, nil
}

// AutoSubmit finalizes a session on behalf of the system: timer expiry,
// stale-heartbeat sweep, or violation threshold. The session's current
// version is used for the compare-and-set since no client observed one.
// Safe to call from multiple concurrent triggers; only the first effective
// call dispatches.
func (f *SubmissionFinalizer) AutoSubmit(ctx context.Context, sessionID uuid.UUID, reason string) (*model.Session, error) {
	target, err := statusForReason(reason)
	if err != nil {
		return nil, err
	}

	s, err := f.manager.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status.IsTerminal() {
		return s, nil
	}

	s, transitioned, err := f.manager.TransitionToTerminal(ctx, sessionID, s.Version, target, reason)
	if err != nil {
		return nil, err
	}
	if transitioned {
		f.dispatch(ctx, s)
	}
	return s, nil
}

func (f *SubmissionFinalizer) dispatch(ctx context.Context, s *model.Session) {
	if f.notifier == nil {
		return
	}
	reason := ""
	if s.TerminationReason != nil {
		reason = *s.TerminationReason
	}
	if err := f.notifier.EnqueueResult(ctx, s.ID); err != nil {
		f.log.Error().Err(err).Str("session_id", s.ID.String()).Msg("Failed to enqueue result dispatch")
	}
	if err := f.notifier.PublishTerminated(ctx, s.ID, s.Status, reason); err != nil {
		f.log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("Failed to publish termination event")
	}
}
