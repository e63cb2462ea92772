package action

import (
	"context"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Func is the body of an action running in a policy-scoped transaction.
type Func[T any] func(ctx context.Context, q db.DBTX) (Result[T], error)

// WithPolicyContextAction runs fn in a transaction bound to actorID. A failed
// result rolls back and is returned as is. Storage rejections that are
// business failures (policy, unique, check, foreign key, no rows) become
// failed results; every other error rolls back and propagates.
func WithPolicyContextAction[T any](ctx context.Context, r db.Runner, actorID *int64, fn Func[T]) (Result[T], error) {
	var out Result[T]
	err := r.RunScoped(ctx, actorID, func(ctx context.Context, q db.DBTX) (bool, error) {
		res, err := fn(ctx, q)
		if err != nil {
			if failed, ok := FromError[T](err); ok {
				out = failed
				return false, nil
			}
			return false, err
		}
		out = res
		return res.Success, nil
	})
	if err != nil {
		return Result[T]{}, err
	}
	return out, nil
}

// Authenticated resolves the actor from ctx and runs fn on its behalf. An
// anonymous request gets an unauthenticated result and no transaction.
func Authenticated[T any](ctx context.Context, r db.Runner, fn func(ctx context.Context, actor *shared.Actor, q db.DBTX) (Result[T], error)) (Result[T], error) {
	actor := shared.ActorFromContext(ctx)
	if actor == nil {
		return Unauthenticated[T](), nil
	}
	return WithPolicyContextAction(ctx, r, actor.UserID(), func(ctx context.Context, q db.DBTX) (Result[T], error) {
		return fn(ctx, actor, q)
	})
}

// Optional runs fn for anonymous and authenticated callers alike; the
// policies decide what an anonymous caller sees.
func Optional[T any](ctx context.Context, r db.Runner, fn func(ctx context.Context, actor *shared.Actor, q db.DBTX) (Result[T], error)) (Result[T], error) {
	actor := shared.ActorFromContext(ctx)
	return WithPolicyContextAction(ctx, r, actor.UserID(), func(ctx context.Context, q db.DBTX) (Result[T], error) {
		return fn(ctx, actor, q)
	})
}
