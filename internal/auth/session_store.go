package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps identity-provider sessions in Redis under
// session:<id> with a TTL.
type SessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client redis.UniversalClient, ttl time.Duration, secure bool) *SessionStore {
	return &SessionStore{client: client, ttl: ttl, secure: secure, now: time.Now}
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create stores a new session for loginID and returns its id.
func (s *SessionStore) Create(ctx context.Context, loginID int64) (string, error) {
	id := generateSessionID()
	data, err := json.Marshal(SessionRecord{LoginID: loginID, CreatedAt: s.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKey(id), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store session: %w", err)
	}
	return id, nil
}

// Get loads a session. A missing or expired session is ErrInvalidCredential.
func (s *SessionStore) Get(ctx context.Context, id string) (SessionRecord, error) {
	if id == "" {
		return SessionRecord{}, ErrNoCredential
	}
	payload, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, ErrInvalidCredential
		}
		return SessionRecord{}, fmt.Errorf("auth: load session: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil || rec.LoginID <= 0 {
		return SessionRecord{}, ErrInvalidCredential
	}
	return rec, nil
}

// Destroy removes a session.
func (s *SessionStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// SetCookie writes the session cookie.
func (s *SessionStore) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  s.now().Add(s.ttl),
	})
}

func redisKey(id string) string {
	return "session:" + id
}

func generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// clearCookie expires a credential cookie.
func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
