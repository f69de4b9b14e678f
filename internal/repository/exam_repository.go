package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
)

const examColumns = `id, title, description, course_code, duration_minutes,
	window_start, window_end, max_attempts, passing_score, randomize_questions, status`

// ExamRepository reads exam definitions. Authoring lives in an external
// collaborator; this service only consumes them.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.CourseCode, &e.DurationMinutes,
		&e.WindowStart, &e.WindowEnd, &e.MaxAttempts, &e.PassingScore,
		&e.RandomizeQuestions, &e.Status,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// ListAvailable retrieves all exams students may currently sit.
func (r *ExamRepository) ListAvailable(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE status IN ($1, $2)
		 ORDER BY window_start NULLS LAST, title`,
		model.ExamStatusPublished, model.ExamStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListEnrolled retrieves available exams a student is enrolled in.
func (r *ExamRepository) ListEnrolled(ctx context.Context, studentID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams e
		 JOIN exam_students es ON es.exam_id = e.id
		 WHERE es.student_id = $1 AND e.status IN ($2, $3)
		 ORDER BY e.window_start NULLS LAST, e.title`,
		studentID, model.ExamStatusPublished, model.ExamStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// IsEnrolled reports whether the student is enrolled in the exam.
func (r *ExamRepository) IsEnrolled(ctx context.Context, examID uuid.UUID, studentID int) (bool, error) {
	var enrolled bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM exam_students WHERE exam_id = $1 AND student_id = $2
		)`, examID, studentID).Scan(&enrolled)
	return enrolled, err
}
