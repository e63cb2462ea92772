package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

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

func toCompetition(c policydb.Competition) Competition {
	return Competition{
		ID: c.ID, Name: c.Name, ForecastsOpenDate: c.OpenAt, ForecastsCloseDate: c.CloseAt,
		EndDate: c.EndAt, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (m memRepo) ListCategories(context.Context) ([]Category, error) {
	out := make([]Category, 0)
	for _, c := range m.f.Categories.Select(nil) {
		out = append(out, Category{ID: c.ID, Name: c.Name})
	}
	slices.SortFunc(out, func(a, b Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m memRepo) CreateCategory(_ context.Context, in CategoryInput) (Category, error) {
	c, err := m.f.Categories.Insert(policydb.Category{Name: strings.TrimSpace(in.Name)})
	return Category{ID: c.ID, Name: c.Name}, err
}

func (m memRepo) ListCompetitions(context.Context) ([]Competition, error) {
	out := make([]Competition, 0)
	for _, c := range m.f.Competitions.Select(nil) {
		out = append(out, toCompetition(c))
	}
	return out, nil
}

func (m memRepo) GetCompetition(_ context.Context, id int64) (Competition, error) {
	c, ok := m.f.Competitions.Get(id)
	if !ok {
		return Competition{}, db.ErrNotFound
	}
	return toCompetition(c), nil
}

func (m memRepo) CreateCompetition(_ context.Context, in CompetitionInput) (Competition, error) {
	now := m.f.Now()
	c, err := m.f.Competitions.Insert(policydb.Competition{
		Name: in.Name, OpenAt: in.ForecastsOpenDate, CloseAt: in.ForecastsCloseDate, EndAt: in.EndDate,
		CreatedAt: now, UpdatedAt: now,
	})
	return toCompetition(c), err
}

func (m memRepo) UpdateCompetition(_ context.Context, id int64, in CompetitionInput) (int64, error) {
	n, err := m.f.Competitions.UpdateByID(id, func(c policydb.Competition) policydb.Competition {
		c.Name, c.OpenAt, c.CloseAt, c.EndAt = in.Name, in.ForecastsOpenDate, in.ForecastsCloseDate, in.EndDate
		c.UpdatedAt = m.f.Now()
		return c
	})
	return int64(n), err
}

type fixture struct {
	*policydb.Fixture
	svc   *Service
	user  policydb.User
	admin policydb.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := policydb.NewFixture()
	fx := &fixture{Fixture: f, user: f.SeedUser("alice", false), admin: f.SeedUser("root", true)}
	fx.svc = NewService(f, func(db.DBTX) Repository { return memRepo{f: f} }, nil)
	return fx
}

func as(u policydb.User) context.Context {
	return shared.ContextWithActor(context.Background(), shared.NewActor(u.ID, u.IsAdmin))
}

var (
	opens  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	closes = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	ends   = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

func TestCategoriesArePublicButAdminWritten(t *testing.T) {
	fx := newFixture(t)
	fx.SeedCategory("Politics")

	res, err := fx.svc.ListCategories(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Len(t, res.Data, 1)

	created, err := fx.svc.CreateCategory(as(fx.user), CategoryInput{Name: "Sports"})
	require.NoError(t, err)
	assert.Equal(t, action.CodeUnauthorized, created.Code)

	created, err = fx.svc.CreateCategory(context.Background(), CategoryInput{Name: "Sports"})
	require.NoError(t, err)
	assert.Equal(t, action.CodeUnauthenticated, created.Code)

	created, err = fx.svc.CreateCategory(as(fx.admin), CategoryInput{Name: " Sports "})
	require.NoError(t, err)
	require.True(t, created.Success, created.Error)
	assert.Equal(t, "Sports", created.Data.Name)

	dup, err := fx.svc.CreateCategory(as(fx.admin), CategoryInput{Name: "Sports"})
	require.NoError(t, err)
	assert.Equal(t, action.CodeConflict, dup.Code)

	res, err = fx.svc.ListCategories(as(fx.user))
	require.NoError(t, err)
	assert.Equal(t, []string{"Politics", "Sports"}, []string{res.Data[0].Name, res.Data[1].Name})
}

func TestCreateCategoryValidation(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.CreateCategory(as(fx.admin), CategoryInput{})
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
	assert.Equal(t, "name is required", res.Error)
	assert.Equal(t, 1, fx.Rollbacks())
	assert.Empty(t, fx.Categories.Raw())
}

func TestCompetitionLifecycle(t *testing.T) {
	fx := newFixture(t)

	in := CompetitionInput{Name: "2026", ForecastsOpenDate: opens, ForecastsCloseDate: closes, EndDate: ends}
	res, err := fx.svc.CreateCompetition(as(fx.admin), in)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	id := res.Data.ID

	got, err := fx.svc.GetCompetition(context.Background(), id)
	require.NoError(t, err)
	require.True(t, got.Success)
	assert.True(t, got.Data.OpenAt(opens.Add(time.Hour)))
	assert.False(t, got.Data.OpenAt(closes))

	later := closes.Add(7 * 24 * time.Hour)
	updated, err := fx.svc.UpdateCompetition(as(fx.admin), id, CompetitionPatch{ForecastsCloseDate: &later})
	require.NoError(t, err)
	require.True(t, updated.Success, updated.Error)
	assert.Equal(t, later, updated.Data.ForecastsCloseDate)
	assert.Equal(t, "2026", updated.Data.Name)

	list, err := fx.svc.ListCompetitions(as(fx.user))
	require.NoError(t, err)
	assert.Len(t, list.Data, 1)
}

func TestUpdateCompetitionRules(t *testing.T) {
	fx := newFixture(t)
	c := fx.SeedCompetition("2026", closes)

	name := "hijacked"
	res, err := fx.svc.UpdateCompetition(as(fx.user), c.ID, CompetitionPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, action.CodeUnauthorized, res.Code)

	tooLate := c.EndAt.Add(time.Hour)
	res, err = fx.svc.UpdateCompetition(as(fx.admin), c.ID, CompetitionPatch{ForecastsCloseDate: &tooLate})
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)

	res, err = fx.svc.UpdateCompetition(as(fx.admin), 99, CompetitionPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, action.CodeNotFound, res.Code)

	stored, _ := fx.Competitions.RawGet(c.ID)
	assert.Equal(t, "2026", stored.Name)
}

func TestCreateCompetitionRejectsInvertedDates(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.CreateCompetition(as(fx.admin), CompetitionInput{Name: "x", ForecastsOpenDate: closes, ForecastsCloseDate: opens, EndDate: ends})
	require.NoError(t, err)
	assert.Equal(t, action.CodeValidation, res.Code)
	assert.Contains(t, res.Error, "forecasts_close_date must be after")
}

func TestCatalogHandler(t *testing.T) {
	fx := newFixture(t)
	h := NewHandler(nil, fx.svc)
	r := chi.NewRouter()
	r.Route("/categories", h.MountCategories)
	r.Route("/competitions", h.MountCompetitions)

	body, _ := json.Marshal(CategoryInput{Name: "Science"})
	req := httptest.NewRequest(http.MethodPost, "/categories/", bytes.NewReader(body)).WithContext(as(fx.admin))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Science"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/competitions/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchCompetitionRejectsUnknownFields(t *testing.T) {
	fx := newFixture(t)
	c := fx.SeedCompetition("2026", closes)
	r := chi.NewRouter()
	r.Route("/competitions", NewHandler(nil, fx.svc).MountCompetitions)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/competitions/%d", c.ID), strings.NewReader(`{"name":"renamed","user_id":2}`)).WithContext(as(fx.admin))
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"field \"user_id\" is not allowed","code":"VALIDATION_ERROR"}`, rec.Body.String())

	stored, _ := fx.Competitions.RawGet(c.ID)
	assert.Equal(t, "2026", stored.Name)
}
