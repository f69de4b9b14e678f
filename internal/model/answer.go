package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a student's response to one question within one session.
// Unique per (session, question); UpdatedAt carries the server time of the
// last accepted write. Last accepted wins, by server clock, never by any
// client-claimed timestamp.
type Answer struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpsertAnswerRequest is the payload for saving a single answer.
type UpsertAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Value      string    `json:"value" binding:"max=10000"`
}

// AnswerBatchRequest is the payload for saving several answers at once.
// The batch is all-or-nothing: every item is validated before any write.
type AnswerBatchRequest struct {
	Answers []UpsertAnswerRequest `json:"answers" binding:"required,min=1,max=100,dive"`
}
