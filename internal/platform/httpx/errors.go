package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// debugDetail controls whether internal error causes appear in responses.
// Enabled outside production only.
var debugDetail bool

// SetDebug toggles detail exposure for internal errors.
func SetDebug(enabled bool) {
	debugDetail = enabled
}

// RespondError maps the shared error taxonomy to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var locked *shared.LockedError
	var validation *shared.ValidationError
	var conflict *shared.ConflictError
	var internal *shared.InternalError

	switch {
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.FormatInt(locked.RemainingSeconds, 10))
		JSON(w, http.StatusLocked, ProblemDetail{
			Title:      "Locked",
			Status:     http.StatusLocked,
			Detail:     locked.Error(),
			RetryAfter: locked.RemainingSeconds,
		})
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Fields: validation.Fields,
		})
	case errors.As(err, &conflict):
		Problem(w, http.StatusConflict, "Conflict", conflict.Reason)
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrSessionInvalid):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrForbidden),
		errors.Is(err, shared.ErrEmailNotVerified),
		errors.Is(err, shared.ErrAccountDisabled):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &internal):
		detail := ""
		if debugDetail && internal.Cause != nil {
			detail = internal.Cause.Error()
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", detail)
	default:
		detail := ""
		if debugDetail && err != nil {
			detail = err.Error()
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", detail)
	}
}
