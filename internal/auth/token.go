package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuedToken is a signed credential and its metadata.
type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// TokenSigner issues and verifies the HS256 credential carried in the
// forecast_token cookie. The subject is the login id.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewTokenSigner constructs a TokenSigner.
func NewTokenSigner(secret, issuer string, ttl time.Duration, secure bool) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), issuer: issuer, ttl: ttl, secure: secure, now: time.Now}
}

// Issue signs a token for loginID.
func (s *TokenSigner) Issue(loginID int64) (IssuedToken, error) {
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(loginID, 10),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return IssuedToken{Value: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify parses a token and returns its claims. Every failure maps to
// ErrInvalidCredential.
func (s *TokenSigner) Verify(raw string) (*jwt.RegisteredClaims, error) {
	if raw == "" {
		return nil, ErrNoCredential
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return &claims, nil
}

// LoginIDFromClaims extracts the login id from the subject.
func LoginIDFromClaims(claims *jwt.RegisteredClaims) (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidCredential
	}
	return id, nil
}

// SetCookie writes the token cookie.
func (s *TokenSigner) SetCookie(w http.ResponseWriter, tok IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    tok.Value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  tok.ExpiresAt,
	})
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: expired", ErrInvalidCredential)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: signature", ErrInvalidCredential)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
}
