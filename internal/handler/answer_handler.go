package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Nobiscumdeus/robustquiz-backend/internal/model"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/response"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/service"
	"github.com/Nobiscumdeus/robustquiz-backend/internal/validator"
)

// AnswerHandler handles answer persistence and question delivery for a
// session.
type AnswerHandler struct {
	sessions  *SessionHandler
	answers   *service.AnswerService
	deliverer *service.QuestionDeliverer
}

// NewAnswerHandler creates a new AnswerHandler.
func NewAnswerHandler(sessions *SessionHandler, answers *service.AnswerService, deliverer *service.QuestionDeliverer) *AnswerHandler {
	return &AnswerHandler{
		sessions:  sessions,
		answers:   answers,
		deliverer: deliverer,
	}
}

// GetQuestions godoc
// GET /api/v1/session/:session_id/questions?batch=N
// Returns batch N of the session's question order. Past-the-end batches
// return empty with end_of_exam set.
func (h *AnswerHandler) GetQuestions(c *gin.Context) {
	s := h.sessions.loadOwnedSession(c)
	if s == nil {
		return
	}

	batchIndex, err := strconv.Atoi(c.DefaultQuery("batch", "0"))
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"batch": "must be an integer",
		})
		return
	}

	batch, err := h.deliverer.FetchBatch(c.Request.Context(), s, batchIndex)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, batch)
}

// UpsertAnswer godoc
// PUT /api/v1/session/:session_id/answer
// Saves a single answer.
func (h *AnswerHandler) UpsertAnswer(c *gin.Context) {
	s := h.sessions.loadOwnedSession(c)
	if s == nil {
		return
	}

	var req model.UpsertAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.answers.UpsertOne(c.Request.Context(), s, &req); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.sessions.summary(s))
}

// UpsertAnswerBatch godoc
// PUT /api/v1/session/:session_id/answers/batch
// Saves a batch of answers all-or-nothing.
func (h *AnswerHandler) UpsertAnswerBatch(c *gin.Context) {
	s := h.sessions.loadOwnedSession(c)
	if s == nil {
		return
	}

	var req model.AnswerBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.answers.UpsertBatch(c.Request.Context(), s, &req); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"saved":   len(req.Answers),
		"summary": h.sessions.summary(s),
	})
}

// GetAnswers godoc
// GET /api/v1/session/:session_id/answers
// Returns the saved answer snapshot; works in any status for resume and
// post-termination review.
func (h *AnswerHandler) GetAnswers(c *gin.Context) {
	s := h.sessions.loadOwnedSession(c)
	if s == nil {
		return
	}

	answers, err := h.answers.CurrentAnswers(c.Request.Context(), s.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answers": answers})
}
