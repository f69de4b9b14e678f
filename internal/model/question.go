package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// Question represents a single exam question as authored. CorrectAnswer is
// never serialized into any student-facing payload.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionText  string          `json:"question_text"`
	QuestionType  QuestionType    `json:"question_type"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"-"`
	Points        int             `json:"points"`
	OrderNum      int             `json:"order_num"`
}

// QuestionForStudent is a question with the correct answer stripped.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options"`
	Points       int             `json:"points"`
	OrderNum     int             `json:"order_num"`
}

// ForStudent converts an authored question into its student-safe view.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		Points:       q.Points,
		OrderNum:     q.OrderNum,
	}
}

// QuestionBatch is one fixed-size slice of a session's question order.
// EndOfExam marks an out-of-range batch index; that is not an error.
type QuestionBatch struct {
	BatchIndex     int                  `json:"batch_index"`
	BatchSize      int                  `json:"batch_size"`
	TotalQuestions int                  `json:"total_questions"`
	Questions      []QuestionForStudent `json:"questions"`
	EndOfExam      bool                 `json:"end_of_exam"`
}
