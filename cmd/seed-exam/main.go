package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/config"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/database"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/logger"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/repository"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
)

// seed-exam provisions a demo exam with questions, a batch of enrolled
// students, and prints a JWT per student so the API can be exercised without
// the external auth service.
func main() {
	var studentCount int
	var durationMinutes int
	flag.IntVar(&studentCount, "students", 10, "Number of students to seed")
	flag.IntVar(&durationMinutes, "duration", 60, "Exam duration in minutes")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	studentRepo := repository.NewStudentRepository(pool)
	authService := service.NewAuthService(cfg)

	fmt.Println("=== Seed Demo Exam ===")

	// Shared password for all seeded students.
	fmt.Print("Enter seed password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	fmt.Println()
	password := string(bytePassword)
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	// ─── Exam + Questions ─────────────────────────────────────────────
	examID := uuid.New()
	now := time.Now()
	windowEnd := now.Add(24 * time.Hour)
	_, err = pool.Exec(ctx,
		`INSERT INTO exams
			(id, title, description, course_code, duration_minutes,
			 window_start, window_end, max_attempts, passing_score,
			 randomize_questions, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, 50, TRUE, $8)`,
		examID, "Demo Exam", "Seeded demo exam", "DEMO101",
		durationMinutes, now, windowEnd, model.ExamStatusPublished)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	fmt.Printf("Created exam %s\n", examID)

	for i := 1; i <= 20; i++ {
		options, _ := json.Marshal([]string{"A", "B", "C", "D"})
		_, err = pool.Exec(ctx,
			`INSERT INTO questions
				(exam_id, question_text, question_type, options, correct_answer, points, order_num)
			 VALUES ($1, $2, $3, $4, $5, 1, $6)`,
			examID, fmt.Sprintf("Demo question %d: pick the first option.", i),
			model.QuestionTypeMultipleChoice, options, "A", i)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create question")
		}
	}
	fmt.Println("Created 20 questions")

	// ─── Students + Enrollment ────────────────────────────────────────
	for i := 1; i <= studentCount; i++ {
		student := &model.Student{
			MatricNo:     fmt.Sprintf("DEMO%04d", i),
			Name:         fmt.Sprintf("Demo Student %d", i),
			Email:        fmt.Sprintf("demo%d@example.edu", i),
			PasswordHash: string(hash),
		}
		if err := studentRepo.Create(ctx, student); err != nil {
			if errors.Is(err, repository.ErrDuplicateMatricNo) {
				existing, err := studentRepo.GetByMatricNo(ctx, student.MatricNo)
				if err != nil {
					log.Fatal().Err(err).Msg("Failed to fetch existing student")
				}
				student = existing
			} else {
				log.Fatal().Err(err).Msg("Failed to create student")
			}
		}

		_, err = pool.Exec(ctx,
			`INSERT INTO exam_students (exam_id, student_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			examID, student.ID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to enroll student")
		}

		token, err := authService.GenerateStudentToken(student.ID, student.MatricNo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate token")
		}
		fmt.Printf("%s (id=%d)\n  token: %s\n", student.MatricNo, student.ID, token)
	}

	fmt.Printf("Seeded %d students enrolled in exam %s\n", studentCount, examID)
}
