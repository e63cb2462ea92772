package shared

import "errors"

// ErrInvalidCredentials is returned for an unknown username, a login
// without a password or a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Errors returned by CSRFManager.VerifyToken.
var (
	ErrCSRFTokenMissing  = errors.New("csrf token missing")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
