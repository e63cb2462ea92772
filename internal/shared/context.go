package shared

import "context"

type actorContextKey struct{}

type actors struct {
	effective *Actor
	real      *Actor
}

// ContextWithActors stores the effective actor and the real (pre-impersonation)
// actor in context. Without impersonation both are the same.
func ContextWithActors(ctx context.Context, effective, real *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actors{effective: effective, real: real})
}

// ContextWithActor stores a single actor acting as itself.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return ContextWithActors(ctx, actor, actor)
}

// ActorFromContext returns the effective actor, nil when anonymous.
func ActorFromContext(ctx context.Context) *Actor {
	v, _ := ctx.Value(actorContextKey{}).(actors)
	return v.effective
}

// RealActorFromContext returns the identity that authenticated the request,
// ignoring impersonation.
func RealActorFromContext(ctx context.Context) *Actor {
	v, _ := ctx.Value(actorContextKey{}).(actors)
	return v.real
}

// Impersonating reports whether the effective actor differs from the real one.
func Impersonating(ctx context.Context) bool {
	v, _ := ctx.Value(actorContextKey{}).(actors)
	return v.effective != nil && v.real != nil && v.effective.ID != v.real.ID
}
