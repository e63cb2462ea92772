package forecasts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Repository reads v_forecasts and v_props and writes forecasts.
type Repository interface {
	List(ctx context.Context, filter Filter, page shared.Page) ([]Forecast, error)
	Get(ctx context.Context, id int64) (Forecast, error)
	Prop(ctx context.Context, propID int64) (views.PropRow, error)
	Create(ctx context.Context, userID, propID int64, value float64) (int64, error)
	Update(ctx context.Context, id int64, value float64) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
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

func (r *pgRepository) List(ctx context.Context, f Filter, page shared.Page) ([]Forecast, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != nil {
		where = append(where, "user_id = "+arg(*f.UserID))
	}
	if f.PropID != nil {
		where = append(where, "prop_id = "+arg(*f.PropID))
	}
	query := `SELECT ` + views.ForecastColumns + ` FROM ` + views.Forecasts
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id LIMIT ` + arg(page.Limit) + ` OFFSET ` + arg(page.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return views.CollectRows(rows, views.ScanForecast)
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Forecast, error) {
	f, err := views.ScanForecast(r.q.QueryRow(ctx,
		`SELECT `+views.ForecastColumns+` FROM `+views.Forecasts+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Forecast{}, db.ErrNotFound
	}
	return f, err
}

func (r *pgRepository) Prop(ctx context.Context, propID int64) (views.PropRow, error) {
	p, err := views.ScanProp(r.q.QueryRow(ctx,
		`SELECT `+views.PropColumns+` FROM `+views.Props+` WHERE id = $1`, propID))
	if errors.Is(err, pgx.ErrNoRows) {
		return views.PropRow{}, db.ErrNotFound
	}
	return p, err
}

func (r *pgRepository) Create(ctx context.Context, userID, propID int64, value float64) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO forecasts (user_id, prop_id, forecast) VALUES ($1, $2, $3) RETURNING id`,
		userID, propID, value).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, id int64, value float64) (int64, error) {
	a := &db.Assignments{}
	a.Set("forecast", value).Touch()
	return a.ExecUpdateByID(ctx, r.q, "forecasts", id)
}

func (r *pgRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM forecasts WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
