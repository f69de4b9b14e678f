package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

// Storage interfaces consumed by the services. The pgx repositories satisfy
// them in production; tests substitute in-memory fakes. Services never reach
// around these into SQL, so every invariant the engine relies on (partial
// unique active session, version CAS, transactional status checks) has a
// single implementation point.

// SessionStore persists sessions with optimistic versioning.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetActive(ctx context.Context, examID uuid.UUID, studentID int) (*model.Session, error)
	GetLatest(ctx context.Context, examID uuid.UUID, studentID int) (*model.Session, error)
	// Create inserts an IN_PROGRESS session; false means an active session
	// for the pair already exists and the caller should resume it.
	Create(ctx context.Context, s *model.Session) (bool, error)
	// Terminate compare-and-sets (status, version); false means the CAS
	// did not match.
	Terminate(ctx context.Context, id uuid.UUID, expectedVersion int64, status model.SessionStatus, reason string, at time.Time) (bool, error)
	RecordHeartbeat(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]model.Session, error)
	ListOverdue(ctx context.Context, now time.Time) ([]model.Session, error)
	CountTerminal(ctx context.Context, examID uuid.UUID, studentID int) (int, error)
}

// AnswerStore persists answers; writes are all-or-nothing and only while the
// owning session is IN_PROGRESS (checked inside the store's transaction).
type AnswerStore interface {
	UpsertBatch(ctx context.Context, sessionID uuid.UUID, answers []model.Answer) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
}

// ViolationStore appends proctoring events, atomically co-incrementing the
// session's violation count.
type ViolationStore interface {
	AppendAndCount(ctx context.Context, ev *model.ViolationEvent) (int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationEvent, error)
}

// ExamStore reads exam definitions and enrollment.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListAvailable(ctx context.Context) ([]model.Exam, error)
	ListEnrolled(ctx context.Context, studentID int) ([]model.Exam, error)
	IsEnrolled(ctx context.Context, examID uuid.UUID, studentID int) (bool, error)
}

// QuestionStore reads exam questions (correct answers included; services
// strip them before anything student-facing).
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}
