package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/clock"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/repository"
)

// ViolationService records proctoring violations and enforces the strike
// threshold. The count increment and event append happen in one transaction,
// so concurrent reports each observe a distinct count and exactly one of
// them crosses the threshold.
type ViolationService struct {
	violations ViolationStore
	finalizer  *SubmissionFinalizer
	threshold  int
	clk        clock.Clock
	log        zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(violations ViolationStore, finalizer *SubmissionFinalizer, threshold int, clk clock.Clock, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		violations: violations,
		finalizer:  finalizer,
		threshold:  threshold,
		clk:        clk,
		log:        log.With().Str("component", "violation_service").Logger(),
	}
}

// LogViolation appends a violation event and returns the session as it
// stands afterwards, which is the auto-submitted session when this event
// crossed the strike threshold. Reports against a terminated session return
// ErrInvalidState.
func (v *ViolationService) LogViolation(ctx context.Context, s *model.Session, req *model.LogViolationRequest) (*model.Session, int, error) {
	ev := &model.ViolationEvent{
		SessionID:  s.ID,
		Type:       req.Type,
		OccurredAt: v.clk.Now(),
		Metadata:   req.Metadata,
	}

	count, err := v.violations.AppendAndCount(ctx, ev)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotWritable) {
			return nil, 0, fmt.Errorf("session is not in progress: %w", ErrInvalidState)
		}
		return nil, 0, fmt.Errorf("append violation: %w", err)
	}

	v.log.Warn().
		Str("session_id", s.ID.String()).
		Str("type", string(ev.Type)).
		Int("count", count).
		Msg("Violation recorded")

	if count >= v.threshold {
		out, err := v.finalizer.AutoSubmit(ctx, s.ID, model.ReasonViolationThreshold)
		if err != nil {
			return nil, count, fmt.Errorf("auto-submit at violation threshold: %w", err)
		}
		return out, count, nil
	}

	updated := *s
	updated.ViolationCount = count
	return &updated, count, nil
}

// Violations returns the session's violation history in occurrence order.
func (v *ViolationService) Violations(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationEvent, error) {
	events, err := v.violations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	if events == nil {
		events = []model.ViolationEvent{}
	}
	return events, nil
}
