package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/shared"
)

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range cookies {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("  ALICE "))
	assert.Equal(t, "strasse", NormalizeUsername("STRASSE"))
	assert.Equal(t, NormalizeUsername("ﬁnn"), NormalizeUsername("FINN"))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, f.signer, f.sessions, ModeToken, nil)

	loginID, actor, err := svc.Authenticate(context.Background(), "Alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(11), loginID)
	assert.Equal(t, int64(1), actor.ID)

	_, _, err = svc.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, _, err = svc.Authenticate(context.Background(), "nobody", "correct horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginTokenModeIssuesTokenAndRecordsSession(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, f.signer, f.sessions, ModeToken, nil)
	rec := httptest.NewRecorder()

	actor, credential, err := svc.Login(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, int64(1), actor.ID)

	cookie := findCookie(rec.Result().Cookies(), TokenCookie)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, credential, cookie.Value)

	claims, err := f.signer.Verify(cookie.Value)
	require.NoError(t, err)
	require.Contains(t, f.repo.sessions, claims.ID)
	assert.Equal(t, int64(1), f.repo.sessions[claims.ID].userID)
}

func TestLoginSessionModeAndLogout(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, f.signer, f.sessions, ModeSession, nil)
	rec := httptest.NewRecorder()

	actor, credential, err := svc.Login(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), "root", "correct horse")
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())
	cookie := findCookie(rec.Result().Cookies(), SessionCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, credential, cookie.Value)
	assert.True(t, f.redis.Exists("session:"+cookie.Value))
	assert.Contains(t, f.repo.sessions, cookie.Value)

	out := httptest.NewRecorder()
	req := requestWith(cookie)
	require.NoError(t, svc.Logout(context.Background(), out, req, actor))
	assert.False(t, f.redis.Exists("session:"+cookie.Value))
	assert.NotContains(t, f.repo.sessions, cookie.Value)
	cleared := findCookie(out.Result().Cookies(), SessionCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func newTestRouter(f *fixture, mode string) (http.Handler, *shared.CSRFManager) {
	csrf := shared.NewCSRFManager("csrf-secret")
	svc := NewService(f.repo, f.signer, f.sessions, mode, nil)
	h := NewHandler(nil, svc, f.resolver, f.repo, f.impersonation, csrf)
	r := chi.NewRouter()
	r.Use(f.resolver.Middleware)
	r.Route("/auth", h.MountRoutes)
	return r, csrf
}

func postJSON(path string, body any, cookies ...*http.Cookie) *http.Request {
	data, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestHandlerLogin(t *testing.T) {
	f := newFixture(t)
	router, csrf := newTestRouter(f, ModeToken)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, postJSON("/auth/login", map[string]string{"username": "alice", "password": "correct horse"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success bool    `json:"success"`
		Data    Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(1), body.Data.UserID)
	cookie := findCookie(rec.Result().Cookies(), TokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, csrf.TokenFor(cookie.Value), body.Data.CSRFToken)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, postJSON("/auth/login", map[string]string{"username": "alice", "password": "wrong password"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, postJSON("/auth/login", map[string]string{"username": "alice"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password is required")
}

func TestHandlerCSRF(t *testing.T) {
	f := newFixture(t)
	router, csrf := newTestRouter(f, ModeToken)
	cookie := f.tokenCookie(t, 11)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestWithPath("/auth/csrf", cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), csrf.TokenFor(cookie.Value))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestWithPath("/auth/csrf"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func requestWithPath(path string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestHandlerImpersonate(t *testing.T) {
	f := newFixture(t)
	router, _ := newTestRouter(f, ModeToken)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, postJSON("/auth/impersonate", map[string]int64{"user_id": 2}, f.tokenCookie(t, 11)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, postJSON("/auth/impersonate", map[string]int64{"user_id": 2}, f.tokenCookie(t, 19)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	grant := findCookie(rec.Result().Cookies(), ImpersonationCookie)
	require.NotNil(t, grant)

	// While impersonating, the real admin may still stop impersonation.
	stop := httptest.NewRequest(http.MethodDelete, "/auth/impersonate", nil)
	stop.AddCookie(f.tokenCookie(t, 19))
	stop.AddCookie(grant)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, stop)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, postJSON("/auth/impersonate", map[string]int64{"user_id": 404}, f.tokenCookie(t, 19)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
