package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
)

// ResultDispatchWorker consumes the dispatch queue of finalized sessions,
// assembles the complete result payload (session outcome, final answer set,
// violation history), and hands it to the scoring side over Pub/Sub. This
// engine never scores anything itself.
type ResultDispatchWorker struct {
	manager    *service.SessionManager
	answers    service.AnswerStore
	violations service.ViolationStore
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewResultDispatchWorker creates a new ResultDispatchWorker.
func NewResultDispatchWorker(manager *service.SessionManager, answers service.AnswerStore, violations service.ViolationStore, rdb *redis.Client, log zerolog.Logger) *ResultDispatchWorker {
	return &ResultDispatchWorker{
		manager:    manager,
		answers:    answers,
		violations: violations,
		rdb:        rdb,
		log:        log.With().Str("component", "result_dispatch_worker").Logger(),
	}
}

// resultPayload is the envelope published to the scoring collaborator.
type resultPayload struct {
	SessionID  uuid.UUID              `json:"session_id"`
	StudentID  int                    `json:"student_id"`
	ExamID     uuid.UUID              `json:"exam_id"`
	Status     model.SessionStatus    `json:"status"`
	Reason     string                 `json:"reason"`
	Answers    []model.Answer         `json:"answers"`
	Violations []model.ViolationEvent `json:"violations"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ResultDispatchWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ResultDispatchWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.DispatchResultsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.dispatch(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Str("session_id", result[1]).Msg("Dispatch error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.DispatchResultsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *ResultDispatchWorker) dispatch(ctx context.Context, rawSessionID string) error {
	sessionID, err := uuid.Parse(rawSessionID)
	if err != nil {
		// Not retryable; log and drop.
		w.log.Error().Str("session_id", rawSessionID).Msg("Malformed session ID on dispatch queue")
		return nil
	}

	s, err := w.manager.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	answers, err := w.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	violations, err := w.violations.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	reason := ""
	if s.TerminationReason != nil {
		reason = *s.TerminationReason
	}
	payload, err := json.Marshal(resultPayload{
		SessionID:  s.ID,
		StudentID:  s.StudentID,
		ExamID:     s.ExamID,
		Status:     s.Status,
		Reason:     reason,
		Answers:    answers,
		Violations: violations,
	})
	if err != nil {
		return err
	}

	if err := w.rdb.Publish(ctx, config.CacheKey.ResultsChannel(), payload).Err(); err != nil {
		return err
	}

	w.log.Info().
		Str("session_id", s.ID.String()).
		Str("status", string(s.Status)).
		Int("answers", len(answers)).
		Msg("Result dispatched")
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *ResultDispatchWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.DispatchResultsQueue).Result()
		if err != nil {
			break
		}

		if err := w.dispatch(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain dispatch error")
			w.rdb.RPush(ctx, config.WorkerKey.DispatchResultsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
