package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// ViolationRepository handles proctoring event data access. Events are
// append-only; the session's violation_count is incremented in the same
// transaction as the append so no concurrent pair of violations can both
// observe a pre-threshold count.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// AppendAndCount appends a violation event and atomically increments the
// owning session's violation_count, returning the post-increment value.
// Returns ErrSessionNotWritable when the session is not IN_PROGRESS.
func (r *ViolationRepository) AppendAndCount(ctx context.Context, ev *model.ViolationEvent) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The UPDATE takes the row lock first; the status predicate makes a
	// terminal session reject the append atomically.
	var count int
	err = tx.QueryRow(ctx,
		`UPDATE sessions SET violation_count = violation_count + 1
		 WHERE id = $1 AND status = $2
		 RETURNING violation_count`,
		ev.SessionID, model.SessionStatusInProgress,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSessionNotWritable
		}
		return 0, fmt.Errorf("increment violation count: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO violation_events (session_id, type, occurred_at, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		ev.SessionID, ev.Type, ev.OccurredAt, ev.Metadata,
	).Scan(&ev.ID)
	if err != nil {
		return 0, fmt.Errorf("append violation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return count, nil
}

// ListBySession retrieves a session's violation history ordered by occurrence.
func (r *ViolationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, type, occurred_at, metadata
		 FROM violation_events WHERE session_id = $1
		 ORDER BY occurred_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ViolationEvent
	for rows.Next() {
		var ev model.ViolationEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Type, &ev.OccurredAt, &ev.Metadata); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
