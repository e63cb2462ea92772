// Package rbac holds the explicit authorization checks the action layer
// makes before touching storage. Row policies remain the backstop.
package rbac

import (
	"context"
	"errors"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Requirement names the kind of actor an operation needs.
type Requirement int

const (
	// AnyActor admits every authenticated actor.
	AnyActor Requirement = iota + 1
	// AdminOnly admits administrators.
	AdminOnly
)

var (
	ErrUnauthenticated = errors.New("rbac: authentication required")
	ErrForbidden       = errors.New("rbac: forbidden")
)

// Require checks actor against req. The switch is total over the role tag;
// an unknown role is denied.
func Require(actor *shared.Actor, req Requirement) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	switch actor.Role {
	case shared.RoleAdmin:
		return nil
	case shared.RoleUser:
		if req == AnyActor {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// Check is Require expressed as an action result. ok is false when the
// actor does not qualify.
func Check[T any](actor *shared.Actor, req Requirement, message string) (action.Result[T], bool) {
	switch err := Require(actor, req); {
	case err == nil:
		return action.Result[T]{}, true
	case errors.Is(err, ErrUnauthenticated):
		return action.Unauthenticated[T](), false
	default:
		return action.Unauthorized[T](message), false
	}
}

// AsAdmin runs fn on behalf of an administrator. Anyone else gets a failed
// result and no transaction is opened.
func AsAdmin[T any](ctx context.Context, r db.Runner, message string, fn func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[T], error)) (action.Result[T], error) {
	if res, ok := Check[T](shared.ActorFromContext(ctx), AdminOnly, message); !ok {
		return res, nil
	}
	return action.Authenticated(ctx, r, fn)
}
