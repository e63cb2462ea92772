package auth

import (
	"context"
	"net/http"
)

// Strategy turns one kind of credential into a login id.
type Strategy interface {
	Name() string
	// Present reports whether the request carries this credential at all.
	Present(r *http.Request) bool
	// Credential returns the raw credential value, used to bind CSRF tokens.
	Credential(r *http.Request) string
	LoginID(ctx context.Context, r *http.Request) (int64, error)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// TokenStrategy verifies the signed legacy token cookie.
type TokenStrategy struct {
	Signer *TokenSigner
}

func (TokenStrategy) Name() string { return "token" }

func (TokenStrategy) Present(r *http.Request) bool { return cookieValue(r, TokenCookie) != "" }

func (TokenStrategy) Credential(r *http.Request) string { return cookieValue(r, TokenCookie) }

func (s TokenStrategy) LoginID(_ context.Context, r *http.Request) (int64, error) {
	claims, err := s.Signer.Verify(cookieValue(r, TokenCookie))
	if err != nil {
		return 0, err
	}
	return LoginIDFromClaims(claims)
}

// SessionStrategy looks up an identity-provider session in Redis.
type SessionStrategy struct {
	Store *SessionStore
}

func (SessionStrategy) Name() string { return "session" }

func (SessionStrategy) Present(r *http.Request) bool { return cookieValue(r, SessionCookie) != "" }

func (SessionStrategy) Credential(r *http.Request) string { return cookieValue(r, SessionCookie) }

func (s SessionStrategy) LoginID(ctx context.Context, r *http.Request) (int64, error) {
	rec, err := s.Store.Get(ctx, cookieValue(r, SessionCookie))
	if err != nil {
		return 0, err
	}
	return rec.LoginID, nil
}
