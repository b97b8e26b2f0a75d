package utils

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"raceday-api/apperror"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

const InternalErrorMessage = "Internal Server Error"

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func SendError(c *gin.Context, status int, err string) {
	c.JSON(status, ErrorResponse{Error: err})
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SendAppError writes err as a JSON error body. Errors that are not an
// AppError are logged and reported, and the client only sees a generic
// message.
func SendAppError(c *gin.Context, err error) {
	status := StatusFor(err)

	var appErr *apperror.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		c.JSON(status, ErrorResponse{Error: appErr.Message, Field: appErr.Field})
		return
	}

	slog.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"request_id", c.GetString(RequestIDKey),
		"error", err,
	)
	sentry.CaptureException(err)
	_ = c.Error(err)

	SendError(c, http.StatusInternalServerError, InternalErrorMessage)
}
