// Package action holds the request-facing result convention: business
// failures are values that roll the transaction back, infrastructure failures
// are errors.
package action

import (
	"encoding/json"
	"errors"

	"github.com/forecast-tournament/forecast/internal/platform/db"
)

// Code classifies a failed result.
type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
)

// Result is the shape every action returns to its caller.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    Code   `json:"code,omitempty"`
}

// MarshalJSON writes the discriminated shape: data only on success, error
// and code only on failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
			Data    T    `json:"data"`
		}{Success: true, Data: r.Data})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Code    Code   `json:"code"`
	}{Error: r.Error, Code: r.Code})
}

// Deleted is the payload of a successful delete.
type Deleted struct {
	ID int64 `json:"id"`
}

// Failed reports whether the result carries a business failure.
func (r Result[T]) Failed() bool { return !r.Success }

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func Fail[T any](code Code, message string) Result[T] {
	return Result[T]{Code: code, Error: message}
}

func Unauthenticated[T any]() Result[T] {
	return Fail[T](CodeUnauthenticated, "authentication required")
}

func Unauthorized[T any](message string) Result[T] {
	if message == "" {
		message = "you are not allowed to do this"
	}
	return Fail[T](CodeUnauthorized, message)
}

func Invalid[T any](message string) Result[T] {
	return Fail[T](CodeValidation, message)
}

func NotFound[T any](what string) Result[T] {
	return Fail[T](CodeNotFound, what+" not found")
}

func Conflict[T any](message string) Result[T] {
	return Fail[T](CodeConflict, message)
}

// Recast carries a failure over to a result of another type.
func Recast[U, T any](r Result[T]) Result[U] {
	return Result[U]{Success: r.Success, Error: r.Error, Code: r.Code}
}

// FromError converts a classified storage rejection into a result. It returns
// false for anything that is not a business failure.
func FromError[T any](err error) (Result[T], bool) {
	err = db.Classify(err)
	switch {
	case err == nil:
		return Result[T]{}, false
	case errors.Is(err, db.ErrPolicyViolation):
		return Unauthorized[T](""), true
	case errors.Is(err, db.ErrNotFound):
		return NotFound[T]("record"), true
	case errors.Is(err, db.ErrUniqueViolation):
		return Conflict[T]("record already exists"), true
	case errors.Is(err, db.ErrForeignKeyViolation):
		return Invalid[T]("referenced record does not exist"), true
	case errors.Is(err, db.ErrCheckViolation):
		return Invalid[T]("value out of range"), true
	default:
		return Result[T]{}, false
	}
}
