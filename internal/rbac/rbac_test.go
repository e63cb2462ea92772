package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/policy"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/testing/policydb"
)

func TestRequire(t *testing.T) {
	user := shared.NewActor(1, false)
	admin := shared.NewActor(2, true)
	unknown := &shared.Actor{ID: 3}

	assert.ErrorIs(t, Require(nil, AnyActor), ErrUnauthenticated)
	assert.NoError(t, Require(user, AnyActor))
	assert.ErrorIs(t, Require(user, AdminOnly), ErrForbidden)
	assert.NoError(t, Require(admin, AdminOnly))
	assert.ErrorIs(t, Require(unknown, AnyActor), ErrForbidden)
}

func TestCheck(t *testing.T) {
	res, ok := Check[int](nil, AnyActor, "")
	assert.False(t, ok)
	assert.Equal(t, action.CodeUnauthenticated, res.Code)

	res, ok = Check[int](shared.NewActor(1, false), AdminOnly, "admins only")
	assert.False(t, ok)
	assert.Equal(t, action.CodeUnauthorized, res.Code)
	assert.Equal(t, "admins only", res.Error)

	_, ok = Check[int](shared.NewActor(1, true), AdminOnly, "")
	assert.True(t, ok)
}

func TestFieldPolicy(t *testing.T) {
	p := NewFieldPolicy([]string{"name", " Email "}, []string{"is_admin"})
	user := shared.NewActor(1, false)
	admin := shared.NewActor(2, true)

	assert.Equal(t, []string{"email", "name"}, p.Allowed(user))
	assert.Equal(t, []string{"email", "is_admin", "name"}, p.Allowed(admin))
	assert.Nil(t, p.Allowed(nil))

	require.NoError(t, p.CheckFields(user, []string{"name", "email"}))
	err := p.CheckFields(user, []string{"name", "is_admin", "id"})
	require.ErrorIs(t, err, ErrFieldNotAllowed)
	assert.Contains(t, err.Error(), "id, is_admin")
	require.NoError(t, p.CheckFields(admin, []string{"is_admin"}))

	res, ok := CheckFieldsResult[int](p, user, []string{"is_admin"})
	assert.False(t, ok)
	assert.Equal(t, action.CodeValidation, res.Code)
	assert.Equal(t, "field not allowed: is_admin", res.Error)
}

func TestMiddleware(t *testing.T) {
	m := Middleware{}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	serve := func(h http.Handler, ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
		return rec.Code
	}

	anon := context.Background()
	user := shared.ContextWithActor(anon, shared.NewActor(1, false))
	admin := shared.ContextWithActor(anon, shared.NewActor(2, true))
	impersonating := shared.ContextWithActors(anon, shared.NewActor(1, false), shared.NewActor(2, true))

	assert.Equal(t, http.StatusUnauthorized, serve(m.RequireActor(ok), anon))
	assert.Equal(t, http.StatusNoContent, serve(m.RequireActor(ok), user))
	assert.Equal(t, http.StatusForbidden, serve(m.RequireAdmin(ok), user))
	assert.Equal(t, http.StatusNoContent, serve(m.RequireAdmin(ok), admin))
	assert.Equal(t, http.StatusForbidden, serve(m.RequireAdmin(ok), impersonating))
	assert.Equal(t, http.StatusNoContent, serve(m.RequireRealAdmin(ok), impersonating))
}

func TestAsAdmin(t *testing.T) {
	store := policydb.New(policy.Schema())
	store.SetAdmin(9, true)
	run := func(ctx context.Context) action.Result[int64] {
		res, err := AsAdmin(ctx, store, "admins only", func(_ context.Context, actor *shared.Actor, _ db.DBTX) (action.Result[int64], error) {
			return action.Ok(actor.ID), nil
		})
		require.NoError(t, err)
		return res
	}

	res := run(context.Background())
	assert.Equal(t, action.CodeUnauthenticated, res.Code)
	res = run(shared.ContextWithActor(context.Background(), shared.NewActor(1, false)))
	assert.Equal(t, action.CodeUnauthorized, res.Code)
	assert.Equal(t, "admins only", res.Error)
	assert.Equal(t, 0, store.Transactions())

	res = run(shared.ContextWithActor(context.Background(), shared.NewActor(9, true)))
	require.True(t, res.Success)
	assert.Equal(t, int64(9), res.Data)
	assert.Equal(t, 1, store.Commits())
}
