package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Repository persists the catalog on one policy-scoped handle.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (Category, error)
	ListCompetitions(ctx context.Context) ([]Competition, error)
	GetCompetition(ctx context.Context, id int64) (Competition, error)
	CreateCompetition(ctx context.Context, in CompetitionInput) (Competition, error)
	UpdateCompetition(ctx context.Context, id int64, in CompetitionInput) (int64, error)
}

// RepositoryFactory binds a Repository to a transaction handle.
type RepositoryFactory func(q db.DBTX) Repository

type pgRepository struct {
	q db.DBTX
}

// NewRepository returns the PostgreSQL Repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{q: q}
}

func (r *pgRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.q.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return views.CollectRows(rows, scanCategory)
}

func (r *pgRepository) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	return scanCategory(r.q.QueryRow(ctx,
		`INSERT INTO categories (name) VALUES ($1) RETURNING `+categoryColumns,
		strings.TrimSpace(in.Name)))
}

func (r *pgRepository) ListCompetitions(ctx context.Context) ([]Competition, error) {
	rows, err := r.q.Query(ctx, `SELECT `+competitionColumns+` FROM competitions ORDER BY forecasts_close_date DESC, id`)
	if err != nil {
		return nil, err
	}
	return views.CollectRows(rows, scanCompetition)
}

func (r *pgRepository) GetCompetition(ctx context.Context, id int64) (Competition, error) {
	c, err := scanCompetition(r.q.QueryRow(ctx,
		`SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Competition{}, db.ErrNotFound
	}
	return c, err
}

func (r *pgRepository) CreateCompetition(ctx context.Context, in CompetitionInput) (Competition, error) {
	return scanCompetition(r.q.QueryRow(ctx, `
		INSERT INTO competitions (name, forecasts_open_date, forecasts_close_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+competitionColumns,
		strings.TrimSpace(in.Name), in.ForecastsOpenDate, in.ForecastsCloseDate, in.EndDate))
}

func (r *pgRepository) UpdateCompetition(ctx context.Context, id int64, in CompetitionInput) (int64, error) {
	a := &db.Assignments{}
	a.Set("name", strings.TrimSpace(in.Name)).
		Set("forecasts_open_date", in.ForecastsOpenDate).
		Set("forecasts_close_date", in.ForecastsCloseDate).
		Set("end_date", in.EndDate).
		Touch()
	return a.ExecUpdateByID(ctx, r.q, "competitions", id)
}
