package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

const sessionColumns = `id, student_id, exam_id, status, version, question_seed,
	server_started_at, server_deadline, last_heartbeat_at, violation_count,
	termination_reason, terminated_at`

// SessionRepository handles exam session data access.
//
// A partial unique index on (student_id, exam_id) WHERE status = 'IN_PROGRESS'
// backs the one-active-attempt invariant; Create relies on it instead of any
// application-side locking.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(
		&s.ID, &s.StudentID, &s.ExamID, &s.Status, &s.Version, &s.QuestionSeed,
		&s.ServerStartedAt, &s.ServerDeadline, &s.LastHeartbeatAt, &s.ViolationCount,
		&s.TerminationReason, &s.TerminatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetActive retrieves the IN_PROGRESS session for an exam-student pair, if any.
func (r *SessionRepository) GetActive(ctx context.Context, examID uuid.UUID, studentID int) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE exam_id = $1 AND student_id = $2 AND status = $3`,
		examID, studentID, model.SessionStatusInProgress))
}

// GetLatest retrieves the most recent session for an exam-student pair in
// any status. Used for post-termination review.
func (r *SessionRepository) GetLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY server_started_at DESC
		 LIMIT 1`, examID, studentID))
}

// Create inserts a new IN_PROGRESS session. Returns false without error when
// the partial unique index rejects the insert because an active session for
// the pair already exists; the caller then refetches and resumes it.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sessions
			(id, student_id, exam_id, status, version, question_seed,
			 server_started_at, server_deadline, last_heartbeat_at, violation_count)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $6, 0)
		 ON CONFLICT (student_id, exam_id) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id`,
		s.ID, s.StudentID, s.ExamID, model.SessionStatusInProgress,
		s.QuestionSeed, s.ServerStartedAt, s.ServerDeadline,
	).Scan(&s.ID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.Status = model.SessionStatusInProgress
	s.LastHeartbeatAt = s.ServerStartedAt
	return true, nil
}

// Terminate is the compare-and-set behind the terminal transition: the row is
// updated only if it is still IN_PROGRESS at the version the caller read.
// Returns false when nothing matched; the caller re-reads to distinguish a
// lost race from a stale version.
func (r *SessionRepository) Terminate(ctx context.Context, id uuid.UUID, expectedVersion int64, status model.SessionStatus, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, termination_reason = $2, terminated_at = $3, version = version + 1
		 WHERE id = $4 AND status = $5 AND version = $6`,
		status, reason, at, id, model.SessionStatusInProgress, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordHeartbeat updates liveness bookkeeping for an IN_PROGRESS session.
// Returns false when the session is not writable (terminal or missing).
func (r *SessionRepository) RecordHeartbeat(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET last_heartbeat_at = $1
		 WHERE id = $2 AND status = $3`,
		at, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListStale retrieves IN_PROGRESS sessions whose last heartbeat is before
// the cutoff. Consumed by the background sweep.
func (r *SessionRepository) ListStale(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status = $1 AND last_heartbeat_at < $2`,
		model.SessionStatusInProgress, cutoff)
}

// ListOverdue retrieves IN_PROGRESS sessions whose server deadline has passed.
func (r *SessionRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status = $1 AND server_deadline <= $2`,
		model.SessionStatusInProgress, now)
}

// CountTerminal counts finished attempts for an exam-student pair, for
// max-attempts eligibility.
func (r *SessionRepository) CountTerminal(ctx context.Context, examID uuid.UUID, studentID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE exam_id = $1 AND student_id = $2 AND status <> $3`,
		examID, studentID, model.SessionStatusInProgress).Scan(&n)
	return n, err
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
