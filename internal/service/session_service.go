package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/clock"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// SessionManager owns the session lifecycle state machine. It is the sole
// writer of Session.status: every terminating path (student submit, timer
// expiry, stale-heartbeat sweep, violation threshold) funnels through
// TransitionToTerminal, so duplicate finalization is impossible by
// construction rather than by caller discipline.
type SessionManager struct {
	sessions SessionStore
	exams    ExamStore
	clk      clock.Clock
	log      zerolog.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(sessions SessionStore, exams ExamStore, clk clock.Clock, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		exams:    exams,
		clk:      clk,
		log:      log.With().Str("component", "session_manager").Logger(),
	}
}

// Get retrieves a session by ID.
func (m *SessionManager) Get(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	s, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ValidateAccess is the read-only eligibility check: exam available, student
// enrolled, inside the exam window, attempts remaining. It mutates nothing
// and is safe to call any number of times before Start.
func (m *SessionManager) ValidateAccess(ctx context.Context, examID uuid.UUID, studentID int) (*model.Exam, error) {
	exam, err := m.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished && exam.Status != model.ExamStatusActive {
		return nil, fmt.Errorf("exam is not open: %w", ErrIneligible)
	}

	enrolled, err := m.exams.IsEnrolled(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, fmt.Errorf("not enrolled: %w", ErrIneligible)
	}

	now := m.clk.Now()
	if exam.WindowStart != nil && now.Before(*exam.WindowStart) {
		return nil, fmt.Errorf("exam window not open yet: %w", ErrIneligible)
	}
	if exam.WindowEnd != nil && now.After(*exam.WindowEnd) {
		return nil, fmt.Errorf("exam window closed: %w", ErrIneligible)
	}

	// An active session means the student is mid-attempt: resuming is
	// always allowed, regardless of consumed attempts.
	if _, err := m.sessions.GetActive(ctx, examID, studentID); err == nil {
		return exam, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active session: %w", err)
	}

	taken, err := m.sessions.CountTerminal(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	if taken >= exam.MaxAttempts {
		return nil, fmt.Errorf("max attempts (%d) exhausted: %w", exam.MaxAttempts, ErrIneligible)
	}

	return exam, nil
}

// Start creates a session for the pair or resumes the existing active one.
// Client retries and page reloads therefore never spawn duplicate attempts:
// both the fast path and the racing-insert path resolve to the same row.
// The returned bool is true when an existing session was resumed.
func (m *SessionManager) Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.Session, bool, error) {
	if existing, err := m.sessions.GetActive(ctx, examID, studentID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check existing session: %w", err)
	}

	exam, err := m.ValidateAccess(ctx, examID, studentID)
	if err != nil {
		return nil, false, err
	}

	now := m.clk.Now()
	s := &model.Session{
		ID:              uuid.New(),
		StudentID:       studentID,
		ExamID:          examID,
		QuestionSeed:    rand.Int63(),
		ServerStartedAt: now,
		ServerDeadline:  now.Add(exam.Duration()),
	}

	created, err := m.sessions.Create(ctx, s)
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	if !created {
		// Lost a concurrent Start for the same pair; adopt the winner.
		existing, err := m.sessions.GetActive(ctx, examID, studentID)
		if err != nil {
			return nil, false, fmt.Errorf("concurrent start detected, refetch failed: %w", err)
		}
		return existing, true, nil
	}

	m.log.Info().
		Str("session_id", s.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Time("deadline", s.ServerDeadline).
		Msg("Session started")

	return s, false, nil
}

// CurrentSession returns the student's most recent session for an exam in
// any status, for reconnects and post-termination review.
func (m *SessionManager) CurrentSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.Session, error) {
	s, err := m.sessions.GetLatest(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no session for exam %s: %w", examID, ErrNotFound)
		}
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	return s, nil
}

// ListEligibleExams returns the exams a student is enrolled in, with attempt
// bookkeeping overlaid.
func (m *SessionManager) ListEligibleExams(ctx context.Context, studentID int) ([]model.EligibleExam, error) {
	exams, err := m.exams.ListEnrolled(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled exams: %w", err)
	}

	now := m.clk.Now()
	out := make([]model.EligibleExam, 0, len(exams))
	for i := range exams {
		e := model.EligibleExam{Exam: exams[i]}

		taken, err := m.sessions.CountTerminal(ctx, e.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("count attempts: %w", err)
		}
		e.AttemptsTaken = taken

		inWindow := (e.WindowStart == nil || !now.Before(*e.WindowStart)) &&
			(e.WindowEnd == nil || !now.After(*e.WindowEnd))
		e.CanStart = inWindow && taken < e.MaxAttempts

		if latest, err := m.sessions.GetLatest(ctx, e.ID, studentID); err == nil {
			e.SessionStatus = latest.Status
			if latest.Status == model.SessionStatusInProgress {
				e.CanStart = inWindow // resume path ignores attempt count
			}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get latest session: %w", err)
		}

		out = append(out, e)
	}
	return out, nil
}

// TransitionToTerminal is the single chokepoint into a terminal status.
//
// Rules, in order: a session already terminal returns its existing outcome
// as success (duplicate submits from flaky networks are not errors); an
// IN_PROGRESS session is compare-and-set on expectedVersion; a CAS miss is
// retried once against freshly-read state; if the state is terminal by then
// another writer won and that outcome is returned, otherwise ErrConflict.
//
// The returned bool is true only for the call that actually performed the
// transition; callers use it to fire one-time side effects exactly once.
func (m *SessionManager) TransitionToTerminal(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, target model.SessionStatus, reason string) (*model.Session, bool, error) {
	if !target.IsTerminal() {
		return nil, false, fmt.Errorf("target status %q is not terminal: %w", target, ErrInvalidState)
	}

	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if s.Status.IsTerminal() {
		return s, false, nil
	}
	if s.Status != model.SessionStatusInProgress {
		return nil, false, fmt.Errorf("session is %s: %w", s.Status, ErrInvalidState)
	}

	version := expectedVersion
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := m.sessions.Terminate(ctx, sessionID, version, target, reason, m.clk.Now())
		if err != nil {
			return nil, false, fmt.Errorf("terminate session: %w", err)
		}
		if ok {
			s, err := m.Get(ctx, sessionID)
			if err != nil {
				return nil, false, err
			}
			m.log.Info().
				Str("session_id", sessionID.String()).
				Str("status", string(target)).
				Str("reason", reason).
				Msg("Session terminated")
			return s, true, nil
		}

		// CAS missed: re-read to find out why.
		s, err = m.Get(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}
		if s.Status.IsTerminal() {
			return s, false, nil // another writer won the race
		}
		version = s.Version
	}

	return nil, false, fmt.Errorf("session %s: %w", sessionID, ErrConflict)
}
