package httpx

import (
	"log/slog"
	"net/http"

	"github.com/forecast-tournament/forecast/internal/action"
)

// StatusForCode maps a failed result code to its HTTP status.
func StatusForCode(code action.Code) int {
	switch code {
	case action.CodeUnauthenticated:
		return http.StatusUnauthorized
	case action.CodeUnauthorized:
		return http.StatusForbidden
	case action.CodeValidation:
		return http.StatusBadRequest
	case action.CodeNotFound:
		return http.StatusNotFound
	case action.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// RespondResult writes an action outcome. A non-nil err is an infrastructure
// failure and is answered with a generic 500; otherwise the result is written
// with okStatus on success or the status of its code.
func RespondResult[T any](w http.ResponseWriter, logger *slog.Logger, okStatus int, res action.Result[T], err error) {
	if err != nil {
		RespondError(w, logger, err)
		return
	}
	if res.Success {
		JSON(w, okStatus, res)
		return
	}
	JSON(w, StatusForCode(res.Code), res)
}
