package auth

import (
	"errors"
	"time"
)

// Cookie names carrying credentials.
const (
	TokenCookie         = "forecast_token"
	SessionCookie       = "forecast_session"
	ImpersonationCookie = "forecast_impersonation"
)

// Login modes for password sign-in.
const (
	ModeToken   = "token"
	ModeSession = "session"
)

var (
	// ErrNoCredential means the strategy found nothing to verify.
	ErrNoCredential = errors.New("auth: no credential")
	// ErrInvalidCredential covers malformed, forged and expired credentials.
	ErrInvalidCredential = errors.New("auth: invalid credential")
	// ErrUnknownLogin means the credential names a login with no user row.
	ErrUnknownLogin = errors.New("auth: unknown login")
)

// SessionRecord is the identity-provider session stored in Redis.
type SessionRecord struct {
	LoginID   int64     `json:"login_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials is what login_credentials() returns for a username.
type Credentials struct {
	LoginID      int64
	PasswordHash string
}

// Identity is a user row resolved from a login.
type Identity struct {
	UserID  int64
	IsAdmin bool
}
