package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/forecast-tournament/forecast/internal/action"
)

// ErrBadRequest marks request bodies or parameters that could not be parsed.
var ErrBadRequest = errors.New("bad request")

// UnknownFieldError names a request body field the endpoint does not accept.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("field %q is not allowed", e.Field)
}

// RespondError writes a problem response for errors that escaped the action
// layer. Unknown fields are answered as a validation result. Only
// ErrBadRequest carries its message to the caller; everything else is
// logged and reported as a generic failure.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var unknown *UnknownFieldError
	if errors.As(err, &unknown) {
		JSON(w, http.StatusBadRequest, action.Invalid[struct{}](unknown.Error()))
		return
	}
	if errors.Is(err, ErrBadRequest) {
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if logger != nil {
		logger.Error("request failed", slog.Any("error", err))
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "something went wrong")
}
