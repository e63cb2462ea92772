package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forecast-tournament/forecast/internal/shared"
)

// Resolver derives the request actor from whichever credential is present.
// It never fails: anything short of a verified credential with a user row is
// anonymous.
type Resolver struct {
	strategies    []Strategy
	identities    IdentityStore
	impersonation *Impersonation
	logger        *slog.Logger
}

// NewResolver builds a resolver trying strategies in order. impersonation
// may be nil to disable the side channel.
func NewResolver(identities IdentityStore, impersonation *Impersonation, logger *slog.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{strategies: strategies, identities: identities, impersonation: impersonation, logger: logger}
}

// Resolve returns the effective actor and the real actor. They differ only
// while a valid impersonation grant is active.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (effective, authenticated *shared.Actor) {
	strategy := res.strategyFor(r)
	if strategy == nil {
		return nil, nil
	}
	loginID, err := strategy.LoginID(ctx, r)
	if err != nil {
		res.logFailure(strategy, err)
		return nil, nil
	}
	actor, err := res.identities.ActorForLogin(ctx, loginID)
	if err != nil {
		res.logFailure(strategy, err)
		return nil, nil
	}
	return res.impersonate(ctx, r, actor), actor
}

// Credential returns the raw credential the resolver would use.
func (res *Resolver) Credential(r *http.Request) (string, bool) {
	strategy := res.strategyFor(r)
	if strategy == nil {
		return "", false
	}
	return strategy.Credential(r), true
}

func (res *Resolver) strategyFor(r *http.Request) Strategy {
	for _, s := range res.strategies {
		if s.Present(r) {
			return s
		}
	}
	return nil
}

func (res *Resolver) impersonate(ctx context.Context, r *http.Request, authenticated *shared.Actor) *shared.Actor {
	if res.impersonation == nil || !authenticated.IsAdmin() {
		return authenticated
	}
	value := cookieValue(r, ImpersonationCookie)
	if value == "" {
		return authenticated
	}
	grant, err := res.impersonation.Decode(value)
	if err != nil || grant.AdminUserID != authenticated.ID {
		res.logger.Debug("impersonation ignored", slog.String("actor", authenticated.String()))
		return authenticated
	}
	target, err := res.identities.ActorForUser(ctx, authenticated.ID, grant.TargetUserID)
	if err != nil {
		res.logger.Warn("impersonation target", slog.Int64("target", grant.TargetUserID), slog.Any("error", err))
		return authenticated
	}
	return target
}

func (res *Resolver) logFailure(s Strategy, err error) {
	if errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrUnknownLogin) || errors.Is(err, ErrNoCredential) {
		res.logger.Debug("credential rejected", slog.String("strategy", s.Name()), slog.Any("error", err))
		return
	}
	res.logger.Warn("credential lookup failed", slog.String("strategy", s.Name()), slog.Any("error", err))
}

// Middleware resolves the actor once per request and stores both actors in
// the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		effective, authenticated := res.Resolve(r.Context(), r)
		ctx := shared.ContextWithActors(r.Context(), effective, authenticated)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
