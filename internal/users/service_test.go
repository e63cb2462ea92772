package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/testing/policydb"
)

type memRepo struct {
	f *policydb.Fixture
}

func (m memRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.f.Users.Get(id)
	if !ok {
		return User{}, db.ErrNotFound
	}
	return m.f.UserView(u), nil
}

func (m memRepo) List(_ context.Context, page shared.Page) ([]User, error) {
	return shared.Window(m.f.VUsers(), page), nil
}

func (m memRepo) Update(_ context.Context, id int64, p Patch) (int64, error) {
	n, err := m.f.Users.UpdateByID(id, func(u policydb.User) policydb.User {
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Email != nil {
			u.Email = *p.Email
		}
		if p.IsAdmin != nil {
			u.IsAdmin = *p.IsAdmin
		}
		return u
	})
	return int64(n), err
}

type fixture struct {
	*policydb.Fixture
	svc   *Service
	alice policydb.User
	bob   policydb.User
	admin policydb.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := policydb.NewFixture()
	fx := &fixture{
		Fixture: f,
		alice:   f.SeedUser("alice", false),
		bob:     f.SeedUser("bob", false),
		admin:   f.SeedUser("root", true),
	}
	fx.svc = NewService(f, func(db.DBTX) Repository { return memRepo{f: f} }, nil)
	return fx
}

func as(u policydb.User) context.Context {
	return shared.ContextWithActor(context.Background(), shared.NewActor(u.ID, u.IsAdmin))
}

func changes(t *testing.T, v map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(v))
	for k, val := range v {
		raw, err := json.Marshal(val)
		require.NoError(t, err)
		out[k] = raw
	}
	return out
}

func TestGetMe(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.GetMe(as(fx.alice))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "alice", res.Data.Name)

	before := fx.Transactions()
	res, err = fx.svc.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, action.CodeUnauthenticated, res.Code)
	assert.Equal(t, before, fx.Transactions())
}

func TestUpdateOwnProfile(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.alice), fx.alice.ID, changes(t, map[string]any{"name": "Alice A.", "email": "a@example.org"}))
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Alice A.", res.Data.Name)
	assert.Equal(t, "a@example.org", res.Data.Email)
	assert.Equal(t, 1, fx.Commits())
}

func TestUpdateProfileRejectsAdminFlagForUsers(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.alice), fx.alice.ID, changes(t, map[string]any{"name": "x", "is_admin": true}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
	assert.Equal(t, "field not allowed: is_admin", res.Error)

	stored, _ := fx.Users.RawGet(fx.alice.ID)
	assert.False(t, stored.IsAdmin)
	assert.Equal(t, "alice", stored.Name)
}

func TestUpdateProfileRejectsUnknownFields(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.admin), fx.alice.ID, changes(t, map[string]any{"login_id": 4}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
	assert.Contains(t, res.Error, "login_id")

	res, err = fx.svc.UpdateProfile(as(fx.alice), fx.alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
}

func TestUpdateOtherProfileDenied(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.bob), fx.alice.ID, changes(t, map[string]any{"name": "pwned"}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeUnauthorized, res.Code)

	stored, _ := fx.Users.RawGet(fx.alice.ID)
	assert.Equal(t, "alice", stored.Name)
}

func TestAdminGrantsAdminFlag(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.admin), fx.bob.ID, changes(t, map[string]any{"is_admin": true}))
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Data.IsAdmin)
	assert.True(t, fx.IsAdmin(fx.bob.ID))
}

func TestUpdateProfileValidation(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.alice), fx.alice.ID, changes(t, map[string]any{"email": "nope", "name": ""}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
	assert.Equal(t, "email must be a valid email; name must be at least 1", res.Error)

	res, err = fx.svc.UpdateProfile(as(fx.alice), fx.alice.ID, changes(t, map[string]any{"name": 12}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
}

func TestUpdateProfileDuplicateEmail(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.alice), fx.alice.ID, changes(t, map[string]any{"email": fx.bob.Email}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeConflict, res.Code)
	assert.Equal(t, 1, fx.Rollbacks())
}

func TestAdminUpdatesMissingUser(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.UpdateProfile(as(fx.admin), 404, changes(t, map[string]any{"name": "ghost"}))
	require.NoError(t, err)
	assert.Equal(t, action.CodeNotFound, res.Code)
}

func TestListIsAdminOnly(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.List(as(fx.alice), shared.NewPage(0, 0))
	require.NoError(t, err)
	assert.Equal(t, action.CodeUnauthorized, res.Code)

	res, err = fx.svc.List(as(fx.admin), shared.NewPage(2, 0))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "alice", res.Data[0].Name)
}

func TestHandlerRoutes(t *testing.T) {
	fx := newFixture(t)
	r := chi.NewRouter()
	r.Route("/users", NewHandler(nil, fx.svc).MountRoutes)

	do := func(ctx context.Context, method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(as(fx.alice), http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"alice"`)

	rec = do(context.Background(), http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(as(fx.alice), http.MethodGet, "/users/", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(as(fx.alice), http.MethodPatch, "/users/"+strconv.FormatInt(fx.alice.ID, 10), map[string]any{"is_admin": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"VALIDATION_ERROR"`)

	rec = do(as(fx.alice), http.MethodPatch, "/users/abc", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
