package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// QuestionDeliverer serves exam questions to students in fixed-size batches.
// Question order is a pure function of the session's question_seed, so any
// two fetches of the same batch by the same session return identical
// content no matter which process serves them.
type QuestionDeliverer struct {
	exams     ExamStore
	questions QuestionStore
	cache     PayloadCache
	batchSize int
	log       zerolog.Logger
}

// NewQuestionDeliverer creates a new QuestionDeliverer.
func NewQuestionDeliverer(exams ExamStore, questions QuestionStore, cache PayloadCache, batchSize int, log zerolog.Logger) *QuestionDeliverer {
	return &QuestionDeliverer{
		exams:     exams,
		questions: questions,
		cache:     cache,
		batchSize: batchSize,
		log:       log.With().Str("component", "question_deliverer").Logger(),
	}
}

// payload returns the student-safe exam payload, preferring the cache and
// falling back to PostgreSQL on a miss. A miss self-heals: the payload read
// from the database is written back so the next request is served hot.
func (d *QuestionDeliverer) payload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	cached, err := d.cache.Get(ctx, examID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		d.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Payload cache unavailable, reading from database")
	}

	payload, err := d.buildPayload(ctx, examID)
	if err != nil {
		return nil, err
	}

	if err := d.cache.Set(ctx, payload); err != nil {
		d.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to self-heal payload cache")
	}
	return payload, nil
}

func (d *QuestionDeliverer) buildPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	exam, err := d.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := d.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	payload := &model.ExamPayload{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Duration:  exam.DurationMinutes,
		Questions: make([]model.QuestionForStudent, 0, len(questions)),
	}
	for i := range questions {
		payload.Questions = append(payload.Questions, questions[i].ForStudent())
	}
	return payload, nil
}

// orderFor returns the session's question order: authored order, or a
// seed-determined shuffle when the exam randomizes. The shuffle depends only
// on question_seed, so it is stable across requests and across restarts.
func orderFor(s *model.Session, randomize bool, questions []model.QuestionForStudent) []model.QuestionForStudent {
	if !randomize {
		return questions
	}
	ordered := make([]model.QuestionForStudent, len(questions))
	copy(ordered, questions)
	rng := rand.New(rand.NewSource(s.QuestionSeed))
	rng.Shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})
	return ordered
}

// FetchBatch returns one batch of the session's question order. Only an
// IN_PROGRESS session may fetch questions; a terminal one gets
// ErrInvalidState. A batch index past the end returns an empty batch with
// EndOfExam set rather than an error, so clients can page forward without
// knowing the total ahead of time. Negative indexes are rejected.
func (d *QuestionDeliverer) FetchBatch(ctx context.Context, s *model.Session, batchIndex int) (*model.QuestionBatch, error) {
	if s.Status != model.SessionStatusInProgress {
		return nil, fmt.Errorf("session is not in progress: %w", ErrInvalidState)
	}
	if batchIndex < 0 {
		return nil, &ValidationError{Fields: map[string]string{
			"batch_index": "must not be negative",
		}}
	}

	exam, err := d.exams.GetByID(ctx, s.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	payload, err := d.payload(ctx, s.ExamID)
	if err != nil {
		return nil, err
	}

	ordered := orderFor(s, exam.RandomizeQuestions, payload.Questions)

	batch := &model.QuestionBatch{
		BatchIndex:     batchIndex,
		BatchSize:      d.batchSize,
		TotalQuestions: len(ordered),
		Questions:      []model.QuestionForStudent{},
	}

	start := batchIndex * d.batchSize
	if start >= len(ordered) {
		batch.EndOfExam = true
		return batch, nil
	}

	end := start + d.batchSize
	if end > len(ordered) {
		end = len(ordered)
	}
	batch.Questions = ordered[start:end]
	batch.EndOfExam = end == len(ordered)
	return batch, nil
}

// PrewarmAll loads every available exam's payload into the cache. Run on
// startup so the first wave of students never stampedes PostgreSQL.
func (d *QuestionDeliverer) PrewarmAll(ctx context.Context) error {
	exams, err := d.exams.ListAvailable(ctx)
	if err != nil {
		return fmt.Errorf("list available exams: %w", err)
	}
	if len(exams) == 0 {
		d.log.Info().Msg("No available exams to prewarm")
		return nil
	}

	d.log.Info().Int("count", len(exams)).Msg("Prewarming exam payloads...")
	for i := range exams {
		payload, err := d.buildPayload(ctx, exams[i].ID)
		if err != nil {
			d.log.Error().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Failed to build exam payload")
			continue
		}
		if err := d.cache.Set(ctx, payload); err != nil {
			d.log.Error().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Failed to warm exam payload")
			continue
		}
	}
	return nil
}
