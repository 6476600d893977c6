package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/middleware"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/response"
	"github.com/stemsi/exstem-attempts/internal/service"
	"github.com/stemsi/exstem-attempts/internal/validator"
)

// AttemptHandler exposes the attempt lifecycle over REST.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/exams/:exam_id/attempts
// Starts a timed attempt. The deadline is computed from the server clock.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.StartAttemptRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	snap, err := h.attemptService.Start(c.Request.Context(), claims.UserID, examID, req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": snap})
}

// GetActiveAttempt godoc
// GET /api/v1/exams/:exam_id/attempts/active
// Lets a reconnecting client resume its running attempt.
func (h *AttemptHandler) GetActiveAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	snap, err := h.attemptService.Active(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
			return
		}
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": snap})
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
// Returns the attempt snapshot with every stored answer.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	if state.Answers == nil {
		state.Answers = []model.Answer{}
	}
	response.Success(c, http.StatusOK, state)
}

// SubmitAnswer godoc
// POST /api/v1/attempts/:attempt_id/answers
// Records one answer. A stale offline write comes back accepted=false.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ack, err := h.attemptService.SubmitAnswer(c.Request.Context(), claims.UserID, attemptID, req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ack": ack})
}

// SubmitBatch godoc
// POST /api/v1/attempts/:attempt_id/answers/batch
// Flushes answers queued while the device was offline.
func (h *AttemptHandler) SubmitBatch(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	var req model.SubmitBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	acks, err := h.attemptService.SubmitBatch(c.Request.Context(), claims.UserID, attemptID, req.Answers)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"acks": acks})
}

// FinishAttempt godoc
// POST /api/v1/attempts/:attempt_id/finish
// Finalizes the attempt. Safe to retry.
func (h *AttemptHandler) FinishAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := parseAttemptID(c)
	if !ok {
		return
	}

	snap, err := h.attemptService.Finish(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": snap})
}

func parseExamID(c *gin.Context) (int64, bool) {
	examID, err := strconv.ParseInt(c.Param("exam_id"), 10, 64)
	if err != nil || examID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return examID, true
}

func parseAttemptID(c *gin.Context) (uuid.UUID, bool) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return attemptID, true
}
