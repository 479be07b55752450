package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	HandleDecisionError(w, err, nil)
}

// HandleDecisionError maps a failed punch to an HTTP response. The decision,
// when given, is returned in data so the device can still show what was
// resolved before the failure.
func HandleDecisionError(w http.ResponseWriter, err error, decision *attendance.Decision) {
	var data interface{}
	if decision != nil {
		data = decision
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, jwt.ErrInsufficientRole):
		Forbidden(w, err.Error())

	// Attendance decision errors
	case errors.Is(err, attendance.ErrUnidentified):
		Fail(w, http.StatusUnprocessableEntity, CodeUnidentified, "Person could not be identified", data)
	case errors.Is(err, attendance.ErrTooEarly):
		Fail(w, http.StatusUnprocessableEntity, CodeTooEarly, err.Error(), data)
	case errors.Is(err, attendance.ErrDuplicatePunch):
		Fail(w, http.StatusConflict, CodeAlreadyPunched, "Already punched for this slot today", data)
	case errors.Is(err, attendance.ErrConfiguration):
		Fail(w, http.StatusInternalServerError, CodeConfiguration, "Attendance rule configuration is invalid", data)
	case errors.Is(err, attendance.ErrStorageUnavailable):
		Fail(w, http.StatusServiceUnavailable, CodeStorageUnavailable, "Attendance storage unavailable, retry later", data)
	case errors.Is(err, attendance.ErrRecordNotFound):
		NotFound(w, "Attendance record not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
