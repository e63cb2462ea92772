package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Impersonation signs and checks the cookie that lets an admin act as
// another user. The payload is target:admin:unix.
type Impersonation struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// ImpersonationGrant is a decoded, signature-checked cookie.
type ImpersonationGrant struct {
	TargetUserID int64
	AdminUserID  int64
	IssuedAt     time.Time
}

// NewImpersonation constructs an Impersonation signer.
func NewImpersonation(secret string, ttl time.Duration, secure bool) *Impersonation {
	return &Impersonation{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// TTL exposes how long a grant stays valid.
func (i *Impersonation) TTL() time.Duration { return i.ttl }

// Encode signs a grant issued now.
func (i *Impersonation) Encode(targetUserID, adminUserID int64) string {
	payload := fmt.Sprintf("%d:%d:%d", targetUserID, adminUserID, i.now().Unix())
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return body + "." + base64.RawURLEncoding.EncodeToString(i.sign(body))
}

// Decode checks the signature and age of a cookie value.
func (i *Impersonation) Decode(value string) (ImpersonationGrant, error) {
	body, sig, ok := strings.Cut(value, ".")
	if !ok || body == "" || sig == "" {
		return ImpersonationGrant{}, ErrInvalidCredential
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(gotSig, i.sign(body)) {
		return ImpersonationGrant{}, ErrInvalidCredential
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return ImpersonationGrant{}, ErrInvalidCredential
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return ImpersonationGrant{}, ErrInvalidCredential
	}
	var nums [3]int64
	for idx, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return ImpersonationGrant{}, ErrInvalidCredential
		}
		nums[idx] = n
	}
	grant := ImpersonationGrant{TargetUserID: nums[0], AdminUserID: nums[1], IssuedAt: time.Unix(nums[2], 0)}
	age := i.now().Sub(grant.IssuedAt)
	if age < 0 || age > i.ttl {
		return ImpersonationGrant{}, fmt.Errorf("%w: expired", ErrInvalidCredential)
	}
	return grant, nil
}

// SetCookie writes a grant for target issued by admin.
func (i *Impersonation) SetCookie(w http.ResponseWriter, targetUserID, adminUserID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     ImpersonationCookie,
		Value:    i.Encode(targetUserID, adminUserID),
		Path:     "/",
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(i.ttl.Seconds()),
	})
}

// ClearCookie ends impersonation.
func (i *Impersonation) ClearCookie(w http.ResponseWriter) {
	clearCookie(w, ImpersonationCookie, i.secure)
}

func (i *Impersonation) sign(body string) []byte {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte("impersonation|" + body))
	return mac.Sum(nil)
}
