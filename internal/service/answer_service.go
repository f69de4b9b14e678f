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

// AnswerService persists student answers with last-write-wins semantics
// keyed on server receipt time. Batches are all-or-nothing: one bad
// question ID rejects the whole batch so the client never has to reason
// about partially applied saves.
type AnswerService struct {
	answers   AnswerStore
	questions QuestionStore
	clk       clock.Clock
	log       zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(answers AnswerStore, questions QuestionStore, clk clock.Clock, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		answers:   answers,
		questions: questions,
		clk:       clk,
		log:       log.With().Str("component", "answer_service").Logger(),
	}
}

// UpsertBatch validates and writes a batch of answers for an IN_PROGRESS
// session. Every question ID must belong to the session's exam; otherwise
// the whole batch is rejected with the offending entries enumerated.
// Replays of the same batch are no-ops beyond refreshing updated_at.
func (a *AnswerService) UpsertBatch(ctx context.Context, s *model.Session, req *model.AnswerBatchRequest) error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("session is %s: %w", s.Status, ErrInvalidState)
	}

	questions, err := a.questions.ListByExam(ctx, s.ExamID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	known := make(map[uuid.UUID]struct{}, len(questions))
	for i := range questions {
		known[questions[i].ID] = struct{}{}
	}

	fields := map[string]string{}
	for i := range req.Answers {
		if _, ok := known[req.Answers[i].QuestionID]; !ok {
			fields[fmt.Sprintf("answers[%d].question_id", i)] = "question does not belong to this exam"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	now := a.clk.Now()
	batch := make([]model.Answer, 0, len(req.Answers))
	for i := range req.Answers {
		batch = append(batch, model.Answer{
			SessionID:  s.ID,
			QuestionID: req.Answers[i].QuestionID,
			Value:      req.Answers[i].Value,
			UpdatedAt:  now,
		})
	}

	if err := a.answers.UpsertBatch(ctx, s.ID, batch); err != nil {
		if errors.Is(err, repository.ErrSessionNotWritable) {
			return fmt.Errorf("session terminated mid-save: %w", ErrInvalidState)
		}
		return fmt.Errorf("upsert answers: %w", err)
	}

	a.log.Debug().
		Str("session_id", s.ID.String()).
		Int("answers", len(batch)).
		Msg("Answers saved")
	return nil
}

// UpsertOne writes a single answer, reusing the batch path.
func (a *AnswerService) UpsertOne(ctx context.Context, s *model.Session, req *model.UpsertAnswerRequest) error {
	return a.UpsertBatch(ctx, s, &model.AnswerBatchRequest{
		Answers: []model.UpsertAnswerRequest{*req},
	})
}

// CurrentAnswers returns the session's saved answers for client-side resume.
func (a *AnswerService) CurrentAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	answers, err := a.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.Answer{}
	}
	return answers, nil
}
