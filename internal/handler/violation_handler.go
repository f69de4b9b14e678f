package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/response"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/validator"
)

// ViolationHandler handles proctoring violation reports.
type ViolationHandler struct {
	sessions   *SessionHandler
	violations *service.ViolationService
}

// NewViolationHandler creates a new ViolationHandler.
func NewViolationHandler(sessions *SessionHandler, violations *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{sessions: sessions, violations: violations}
}

// LogViolation godoc
// POST /api/v1/session/:session_id/violation
// Records an integrity event. When the strike threshold is crossed the
// response carries the auto-submitted session summary.
func (h *ViolationHandler) LogViolation(c *gin.Context) {
	s := h.sessions.loadOwnedSession(c)
	if s == nil {
		return
	}

	var req model.LogViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, count, err := h.violations.LogViolation(c.Request.Context(), s, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"violation_count": count,
		"summary":         h.sessions.summary(out),
	})
}

// GetViolations godoc
// GET /api/v1/session/:session_id/violations
// Returns the session's violation history in occurrence order.
func (h *ViolationHandler) GetViolations(c *gin.Context) {
	s := h.sessions.loadOwnedSession(c)
	if s == nil {
		return
	}

	events, err := h.violations.Violations(c.Request.Context(), s.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"violations": events})
}
