package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

func newAnswerFixture(t *testing.T) (*fixture, *AnswerService, []model.Question) {
	t.Helper()
	f := newFixture(t)

	questions := make([]model.Question, 5)
	for i := range questions {
		questions[i] = model.Question{
			ID:           uuid.New(),
			ExamID:       f.exam.ID,
			QuestionText: "q",
			QuestionType: model.QuestionTypeMultipleChoice,
			OrderNum:     i + 1,
		}
	}
	f.questions.add(f.exam.ID, questions...)

	svc := NewAnswerService(f.answers, f.questions, f.clk, zerolog.Nop())
	return f, svc, questions
}

func TestUpsertBatchLastWriteWins(t *testing.T) {
	f, svc, questions := newAnswerFixture(t)
	ctx := context.Background()
	s := f.start(t)

	write := func(value string) {
		t.Helper()
		err := svc.UpsertBatch(ctx, s, &model.AnswerBatchRequest{
			Answers: []model.UpsertAnswerRequest{{QuestionID: questions[0].ID, Value: value}},
		})
		if err != nil {
			t.Fatalf("upsert %q: %v", value, err)
		}
	}

	write("first")
	f.clk.Advance(time.Second)
	write("second")

	answers, err := svc.CurrentAnswers(ctx, s.ID)
	if err != nil {
		t.Fatalf("current answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("len = %d, want 1", len(answers))
	}
	if answers[0].Value != "second" {
		t.Errorf("value = %q, want %q", answers[0].Value, "second")
	}
}

func TestUpsertBatchAllOrNothing(t *testing.T) {
	f, svc, questions := newAnswerFixture(t)
	ctx := context.Background()
	s := f.start(t)

	err := svc.UpsertBatch(ctx, s, &model.AnswerBatchRequest{
		Answers: []model.UpsertAnswerRequest{
			{QuestionID: questions[0].ID, Value: "valid"},
			{QuestionID: uuid.New(), Value: "bogus question"},
			{QuestionID: uuid.New(), Value: "another bogus"},
		},
	})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(ve.Fields) != 2 {
		t.Errorf("fields = %d, want 2", len(ve.Fields))
	}
	if _, ok := ve.Fields["answers[1].question_id"]; !ok {
		t.Errorf("missing field entry for answers[1].question_id: %v", ve.Fields)
	}
	if _, ok := ve.Fields["answers[2].question_id"]; !ok {
		t.Errorf("missing field entry for answers[2].question_id: %v", ve.Fields)
	}

	// Nothing was written, including the valid item.
	answers, _ := svc.CurrentAnswers(ctx, s.ID)
	if len(answers) != 0 {
		t.Fatalf("answers written = %d, want 0", len(answers))
	}
}

func TestUpsertBatchRejectsTerminalSession(t *testing.T) {
	f, svc, questions := newAnswerFixture(t)
	ctx := context.Background()
	s := f.start(t)

	if _, err := f.finalizer.Submit(ctx, s.ID, s.Version); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s, _ = f.manager.Get(ctx, s.ID)

	err := svc.UpsertBatch(ctx, s, &model.AnswerBatchRequest{
		Answers: []model.UpsertAnswerRequest{{QuestionID: questions[0].ID, Value: "late"}},
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestUpsertBatchRejectsTerminationMidRequest(t *testing.T) {
	f, svc, questions := newAnswerFixture(t)
	ctx := context.Background()
	s := f.start(t)

	// The session terminates after the handler read it but before the
	// store write: the stale snapshot still says IN_PROGRESS, the store's
	// own status check must reject the write.
	if _, err := f.finalizer.Submit(ctx, s.ID, s.Version); err != nil {
		t.Fatalf("submit: %v", err)
	}

	err := svc.UpsertBatch(ctx, s, &model.AnswerBatchRequest{
		Answers: []model.UpsertAnswerRequest{{QuestionID: questions[0].ID, Value: "late"}},
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	answers, _ := svc.CurrentAnswers(ctx, s.ID)
	if len(answers) != 0 {
		t.Fatalf("answers written = %d, want 0", len(answers))
	}
}

func TestUpsertBatchIsIdempotent(t *testing.T) {
	f, svc, questions := newAnswerFixture(t)
	ctx := context.Background()
	s := f.start(t)

	req := &model.AnswerBatchRequest{
		Answers: []model.UpsertAnswerRequest{
			{QuestionID: questions[0].ID, Value: "alpha"},
			{QuestionID: questions[1].ID, Value: "beta"},
		},
	}
	if err := svc.UpsertBatch(ctx, s, req); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := svc.UpsertBatch(ctx, s, req); err != nil {
		t.Fatalf("replayed write: %v", err)
	}

	answers, _ := svc.CurrentAnswers(ctx, s.ID)
	if len(answers) != 2 {
		t.Fatalf("len = %d, want 2", len(answers))
	}
}

func TestCurrentAnswersReadableAfterTermination(t *testing.T) {
	f, svc, questions := newAnswerFixture(t)
	ctx := context.Background()
	s := f.start(t)

	if err := svc.UpsertOne(ctx, s, &model.UpsertAnswerRequest{QuestionID: questions[0].ID, Value: "kept"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := f.finalizer.AutoSubmit(ctx, s.ID, model.ReasonStaleHeartbeat); err != nil {
		t.Fatalf("auto-submit: %v", err)
	}

	answers, err := svc.CurrentAnswers(ctx, s.ID)
	if err != nil {
		t.Fatalf("current answers: %v", err)
	}
	if len(answers) != 1 || answers[0].Value != "kept" {
		t.Fatalf("answers = %+v, want the saved answer preserved", answers)
	}
}
