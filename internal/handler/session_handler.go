package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/middleware"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/response"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/validator"
)

// SessionHandler handles the session-scoped lifecycle endpoints: state,
// timer sync, heartbeat, submit, auto-submit.
type SessionHandler struct {
	manager   *service.SessionManager
	timer     *service.TimerAuthority
	heartbeat *service.HeartbeatMonitor
	finalizer *service.SubmissionFinalizer
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	manager *service.SessionManager,
	timer *service.TimerAuthority,
	heartbeat *service.HeartbeatMonitor,
	finalizer *service.SubmissionFinalizer,
) *SessionHandler {
	return &SessionHandler{
		manager:   manager,
		timer:     timer,
		heartbeat: heartbeat,
		finalizer: finalizer,
	}
}

// loadOwnedSession fetches the session in the :session_id param and verifies
// it belongs to the authenticated student. Writes the error response itself
// and returns nil when the caller should bail.
func (h *SessionHandler) loadOwnedSession(c *gin.Context) *model.Session {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil
	}

	s, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeServiceError(c, err)
		return nil
	}

	if s.StudentID != claims.StudentID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return nil
	}
	return s
}

// summary builds the reconciliation block every state-changing response
// carries: status, version, authoritative remaining time.
func (h *SessionHandler) summary(s *model.Session) model.SessionSummary {
	return model.SessionSummary{
		SessionID:     s.ID,
		Status:        s.Status,
		Version:       s.Version,
		RemainingSecs: h.timer.Remaining(s),
		Reason:        s.TerminationReason,
	}
}

// GetSession godoc
// GET /api/v1/session/:session_id
// Returns the session with its authoritative remaining time.
func (h *SessionHandler) GetSession(c *gin.Context) {
	s := h.loadOwnedSession(c)
	if s == nil {
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session": s,
		"summary": h.summary(s),
	})
}

// SyncTime godoc
// GET /api/v1/session/:session_id/time
// Returns the server-authoritative remaining time. When the deadline has
// passed, the session is expired in this same call.
func (h *SessionHandler) SyncTime(c *gin.Context) {
	s := h.loadOwnedSession(c)
	if s == nil {
		return
	}

	s, remaining, err := h.timer.Sync(c.Request.Context(), s.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	summary := h.summary(s)
	summary.RemainingSecs = remaining
	response.Success(c, http.StatusOK, summary)
}

// Heartbeat godoc
// POST /api/v1/session/:session_id/heartbeat
// Records a liveness ping. 409 tells the client its session is already over.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	s := h.loadOwnedSession(c)
	if s == nil {
		return
	}

	if err := h.heartbeat.Heartbeat(c.Request.Context(), s.ID); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.summary(s))
}

// Submit godoc
// POST /api/v1/session/:session_id/submit
// Voluntary finalize. Retries of the same submit succeed with the existing
// terminal outcome.
func (h *SessionHandler) Submit(c *gin.Context) {
	s := h.loadOwnedSession(c)
	if s == nil {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.finalizer.Submit(c.Request.Context(), s.ID, req.ExpectedVersion)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.summary(out))
}

// AutoSubmit godoc
// POST /api/v1/session/:session_id/auto-submit
// System-initiated finalize reported by the student client (tab close,
// timer hitting zero locally). The reason maps to the terminal status.
func (h *SessionHandler) AutoSubmit(c *gin.Context) {
	s := h.loadOwnedSession(c)
	if s == nil {
		return
	}

	var req model.AutoSubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.finalizer.AutoSubmit(c.Request.Context(), s.ID, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.summary(out))
}
