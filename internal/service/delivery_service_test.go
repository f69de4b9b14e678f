package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

func seedQuestions(f *fixture, n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.Question{
			ID:            uuid.New(),
			ExamID:        f.exam.ID,
			QuestionText:  fmt.Sprintf("Question %d", i+1),
			QuestionType:  model.QuestionTypeMultipleChoice,
			CorrectAnswer: "A",
			Points:        1,
			OrderNum:      i + 1,
		})
	}
	f.questions.add(f.exam.ID, qs...)
	return qs
}

func newDeliverer(f *fixture, batchSize int) *QuestionDeliverer {
	return NewQuestionDeliverer(f.exams, f.questions, f.cache, batchSize, zerolog.Nop())
}

func batchIDs(b *model.QuestionBatch) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Questions))
	for i := range b.Questions {
		ids = append(ids, b.Questions[i].ID)
	}
	return ids
}

func TestFetchBatchIsDeterministicPerSession(t *testing.T) {
	f := newFixture(t)
	f.exam.RandomizeQuestions = true
	f.exams.add(&f.exam, fixtureStudentID)
	seedQuestions(f, 12)
	d := newDeliverer(f, 5)
	s := f.start(t)
	ctx := context.Background()

	first, err := d.FetchBatch(ctx, s, 0)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := d.FetchBatch(ctx, s, 0)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	a, b := batchIDs(first), batchIDs(second)
	if len(a) != 5 || len(b) != 5 {
		t.Fatalf("batch sizes = %d, %d, want 5", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("refetch changed order at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestShuffleVariesAcrossSeeds(t *testing.T) {
	f := newFixture(t)
	f.exam.RandomizeQuestions = true
	f.exams.add(&f.exam, fixtureStudentID)
	qs := seedQuestions(f, 20)
	d := newDeliverer(f, 20)
	s := f.start(t)
	ctx := context.Background()

	mine, err := d.FetchBatch(ctx, s, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	other := *s
	other.QuestionSeed = s.QuestionSeed + 1
	theirs, err := d.FetchBatch(ctx, &other, 0)
	if err != nil {
		t.Fatalf("fetch with different seed: %v", err)
	}

	// Same question set either way.
	seen := make(map[uuid.UUID]bool)
	for _, id := range batchIDs(mine) {
		seen[id] = true
	}
	for _, q := range qs {
		if !seen[q.ID] {
			t.Fatalf("question %s missing from shuffled order", q.ID)
		}
	}

	same := true
	a, b := batchIDs(mine), batchIDs(theirs)
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("20-question shuffles for adjacent seeds are identical")
	}
}

func TestAuthoredOrderWhenRandomizationOff(t *testing.T) {
	f := newFixture(t)
	qs := seedQuestions(f, 6)
	d := newDeliverer(f, 10)
	s := f.start(t)

	batch, err := d.FetchBatch(context.Background(), s, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for i, id := range batchIDs(batch) {
		if id != qs[i].ID {
			t.Fatalf("position %d = %s, want authored %s", i, id, qs[i].ID)
		}
	}
}

func TestBatchBoundaries(t *testing.T) {
	f := newFixture(t)
	seedQuestions(f, 12)
	d := newDeliverer(f, 5)
	s := f.start(t)
	ctx := context.Background()

	cases := []struct {
		index     int
		wantLen   int
		endOfExam bool
	}{
		{0, 5, false},
		{1, 5, false},
		{2, 2, true},
		{3, 0, true},
		{9, 0, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("batch_%d", tc.index), func(t *testing.T) {
			batch, err := d.FetchBatch(ctx, s, tc.index)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(batch.Questions) != tc.wantLen {
				t.Errorf("len = %d, want %d", len(batch.Questions), tc.wantLen)
			}
			if batch.EndOfExam != tc.endOfExam {
				t.Errorf("end_of_exam = %v, want %v", batch.EndOfExam, tc.endOfExam)
			}
			if batch.TotalQuestions != 12 {
				t.Errorf("total = %d, want 12", batch.TotalQuestions)
			}
		})
	}
}

func TestFetchBatchRejectsNegativeIndex(t *testing.T) {
	f := newFixture(t)
	seedQuestions(f, 3)
	d := newDeliverer(f, 5)
	s := f.start(t)

	_, err := d.FetchBatch(context.Background(), s, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["batch_index"]; !ok {
		t.Errorf("fields = %v, want batch_index", verr.Fields)
	}
}

func TestFetchBatchRejectsTerminalSession(t *testing.T) {
	f := newFixture(t)
	seedQuestions(f, 5)
	d := newDeliverer(f, 5)
	ctx := context.Background()
	s := f.start(t)

	if _, err := f.finalizer.Submit(ctx, s.ID, s.Version); err != nil {
		t.Fatalf("submit: %v", err)
	}
	submitted, err := f.manager.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	batch, err := d.FetchBatch(ctx, submitted, 0)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if batch != nil {
		t.Fatalf("terminal session still served %d question(s)", len(batch.Questions))
	}
}

func TestPayloadNeverExposesCorrectAnswers(t *testing.T) {
	f := newFixture(t)
	seedQuestions(f, 4)
	d := newDeliverer(f, 10)
	s := f.start(t)

	batch, err := d.FetchBatch(context.Background(), s, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for i := range batch.Questions {
		if batch.Questions[i].QuestionText == "" {
			t.Errorf("question %d missing text", i)
		}
	}
	// QuestionForStudent has no answer field at all; verify the payload in
	// the cache went through the same projection.
	cached, err := f.cache.Get(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if len(cached.Questions) != 4 {
		t.Errorf("cached questions = %d, want 4", len(cached.Questions))
	}
}

func TestCacheMissSelfHeals(t *testing.T) {
	f := newFixture(t)
	seedQuestions(f, 5)
	d := newDeliverer(f, 5)
	s := f.start(t)
	ctx := context.Background()

	if _, err := d.FetchBatch(ctx, s, 0); err != nil {
		t.Fatalf("cold fetch: %v", err)
	}
	if f.cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1 after miss", f.cache.sets)
	}

	if _, err := d.FetchBatch(ctx, s, 0); err != nil {
		t.Fatalf("warm fetch: %v", err)
	}
	if f.cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1 (warm fetch should hit)", f.cache.sets)
	}
}

func TestPrewarmAllPopulatesCache(t *testing.T) {
	f := newFixture(t)
	seedQuestions(f, 5)

	second := model.Exam{
		ID:              uuid.New(),
		Title:           "Networks Final",
		DurationMinutes: 90,
		MaxAttempts:     1,
		Status:          model.ExamStatusActive,
	}
	f.exams.add(&second, fixtureStudentID)
	f.questions.add(second.ID, model.Question{
		ID:           uuid.New(),
		ExamID:       second.ID,
		QuestionText: "Describe TCP slow start.",
		QuestionType: model.QuestionTypeEssay,
		Points:       10,
		OrderNum:     1,
	})

	d := newDeliverer(f, 5)
	if err := d.PrewarmAll(context.Background()); err != nil {
		t.Fatalf("prewarm: %v", err)
	}

	for _, examID := range []uuid.UUID{f.exam.ID, second.ID} {
		if _, err := f.cache.Get(context.Background(), examID); err != nil {
			t.Errorf("exam %s not warmed: %v", examID, err)
		}
	}
}
