package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempts/internal/model"
	"github.com/stemsi/exstem-attempts/internal/response"
)

// classify maps an engine error to an HTTP status and error code. More
// specific not-found sentinels are checked before the generic one.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, model.ErrBatchTooLarge):
		return http.StatusBadRequest, response.ErrBatchTooLarge
	case errors.Is(err, model.ErrNotOwner):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, model.ErrQuestionNotFound):
		return http.StatusNotFound, response.ErrQuestionNotFound
	case errors.Is(err, model.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, model.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, response.ErrAttemptActive
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict, response.ErrAttemptClosed
	case errors.Is(err, model.ErrHandOffFailed):
		return http.StatusInternalServerError, response.ErrScoringUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the mapped error response, logging server-side failures.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("route", c.FullPath()).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}
