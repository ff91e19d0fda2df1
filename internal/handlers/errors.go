package handlers

import (
	"errors"
	"net/http"

	"github.com/dimitrije/querydraft/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
)

// errorCode maps a service error onto an HTTP status and a stable code that
// websocket clients also receive.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, services.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, services.ErrCapacityExceeded):
		return http.StatusConflict, "CAPACITY_EXCEEDED"
	case errors.Is(err, services.ErrConflictDetected):
		return http.StatusConflict, "CONFLICT_DETECTED"
	case errors.Is(err, services.ErrAlreadyMember):
		return http.StatusConflict, "ALREADY_MEMBER"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// errorMessage hides internal failures behind fallback.
func errorMessage(err error, fallback string) string {
	if status, _ := errorCode(err); status == http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}

func respondError(c *drift.Context, err error, fallback string) {
	status, code := errorCode(err)
	msg := errorMessage(err, fallback)

	switch status {
	case http.StatusBadRequest:
		c.BadRequest(msg)
	case http.StatusForbidden:
		c.Forbidden(msg)
	case http.StatusNotFound:
		c.NotFound(msg)
	case http.StatusConflict:
		_ = c.JSON(http.StatusConflict, map[string]string{
			"code":    code,
			"message": msg,
		})
	default:
		c.InternalServerError(fallback)
	}
}
