package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/forecast-tournament/forecast/internal/platform/httpx"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Middleware gates routes on the actor resolved for the request.
type Middleware struct {
	Logger *slog.Logger
}

// RequireActor rejects anonymous requests with 401.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return m.require(AnyActor, shared.ActorFromContext, next)
}

// RequireAdmin lets only administrators through.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.require(AdminOnly, shared.ActorFromContext, next)
}

// RequireRealAdmin checks the identity that authenticated the request, not
// the impersonated one.
func (m Middleware) RequireRealAdmin(next http.Handler) http.Handler {
	return m.require(AdminOnly, shared.RealActorFromContext, next)
}

func (m Middleware) require(req Requirement, actorOf func(context.Context) *shared.Actor, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorOf(r.Context())
		switch err := Require(actor, req); err {
		case nil:
			next.ServeHTTP(w, r)
		case ErrUnauthenticated:
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		default:
			if m.Logger != nil {
				m.Logger.Warn("rbac denied", slog.String("actor", actor.String()), slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		}
	})
}
