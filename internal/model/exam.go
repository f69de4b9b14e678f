package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam definition.
// Exam authoring lives outside this service; the engine only reads these.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusActive    ExamStatus = "ACTIVE"
	ExamStatusClosed    ExamStatus = "CLOSED"
)

// Exam is the exam definition consumed as input by the session engine.
type Exam struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	CourseCode         string     `json:"course_code,omitempty"`
	DurationMinutes    int        `json:"duration_minutes"`
	WindowStart        *time.Time `json:"window_start,omitempty"`
	WindowEnd          *time.Time `json:"window_end,omitempty"`
	MaxAttempts        int        `json:"max_attempts"`
	PassingScore       float64    `json:"passing_score"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	Status             ExamStatus `json:"status"`
}

// Duration returns the exam length as a time.Duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// EligibleExam is an exam as listed to a student, with attempt bookkeeping
// overlaid so the client can render availability without extra calls.
type EligibleExam struct {
	Exam
	AttemptsTaken int           `json:"attempts_taken"`
	CanStart      bool          `json:"can_start"`
	SessionStatus SessionStatus `json:"session_status,omitempty"`
}

// ExamPayload is the Redis-cached, student-safe view of an exam: questions
// in authored order with correct answers stripped.
type ExamPayload struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	Questions []QuestionForStudent `json:"questions"`
}
