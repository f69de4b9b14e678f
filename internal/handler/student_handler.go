package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/middleware"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/response"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
)

// StudentHandler handles the exam-scoped student endpoints: eligible exam
// listing, eligibility checks, and session start/resume.
type StudentHandler struct {
	manager *service.SessionManager
	timer   *service.TimerAuthority
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(manager *service.SessionManager, timer *service.TimerAuthority) *StudentHandler {
	return &StudentHandler{manager: manager, timer: timer}
}

// ListExams godoc
// GET /api/v1/student/exams/:matric_no
// Returns exams the student is enrolled in, with attempt bookkeeping. The
// matric number in the path must match the authenticated identity.
func (h *StudentHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if c.Param("matric_no") != claims.MatricNo {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	exams, err := h.manager.ListEligibleExams(c.Request.Context(), claims.StudentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// ValidateAccess godoc
// POST /api/v1/student/exam/:exam_id/validate
// Read-only eligibility check; creates nothing.
func (h *StudentHandler) ValidateAccess(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.manager.ValidateAccess(c.Request.Context(), examID, claims.StudentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam, "eligible": true})
}

// StartSession godoc
// POST /api/v1/student/exam/:exam_id/session/start
// Creates a session or resumes the student's active one. Retries never
// spawn a second attempt.
func (h *StudentHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	s, resumed, err := h.manager.Start(c.Request.Context(), examID, claims.StudentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{
		"session":                s,
		"resumed":                resumed,
		"time_remaining_seconds": h.timer.Remaining(s),
	})
}

// GetCurrentSession godoc
// GET /api/v1/exam/:exam_id/session
// Returns the student's most recent session for the exam in any status.
func (h *StudentHandler) GetCurrentSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	s, err := h.manager.CurrentSession(c.Request.Context(), examID, claims.StudentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":                s,
		"time_remaining_seconds": h.timer.Remaining(s),
	})
}
