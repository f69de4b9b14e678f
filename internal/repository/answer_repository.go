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

// ErrSessionNotWritable is returned when an answer or violation write targets
// a session that is no longer IN_PROGRESS (or does not exist).
var ErrSessionNotWritable = errors.New("session is not in progress")

// AnswerRepository handles student answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertBatch writes a set of answers all-or-nothing. The owning session row
// is locked FOR SHARE and its status re-checked inside the transaction, which
// closes the race where a terminal transition lands mid-request: either this
// commit happens-before the transition, or the status check fails and nothing
// is written.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, sessionID uuid.UUID, answers []model.Answer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.SessionStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM sessions WHERE id = $1 FOR SHARE`, sessionID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotWritable
		}
		return fmt.Errorf("lock session: %w", err)
	}
	if status != model.SessionStatusInProgress {
		return ErrSessionNotWritable
	}

	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(
			`INSERT INTO answers (session_id, question_id, value, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			 SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			sessionID, a.QuestionID, a.Value, a.UpdatedAt)
	}

	br := tx.SendBatch(ctx, batch)
	for range answers {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert answer: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// ListBySession retrieves all answers for a session, ordered by question.
// Available in any session status; review after termination needs it.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, value, updated_at
		 FROM answers WHERE session_id = $1
		 ORDER BY question_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Value, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
