package suggestions

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Repository reads v_suggested_props and writes suggested_props.
type Repository interface {
	List(ctx context.Context, page shared.Page) ([]Suggestion, error)
	Get(ctx context.Context, id int64) (Suggestion, error)
	Create(ctx context.Context, userID int64, in SuggestInput) (int64, error)
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

func (r *pgRepository) List(ctx context.Context, page shared.Page) ([]Suggestion, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+views.SuggestedPropColumns+` FROM `+views.SuggestedProps+` ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return views.CollectRows(rows, views.ScanSuggestedProp)
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Suggestion, error) {
	s, err := views.ScanSuggestedProp(r.q.QueryRow(ctx,
		`SELECT `+views.SuggestedPropColumns+` FROM `+views.SuggestedProps+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Suggestion{}, db.ErrNotFound
	}
	return s, err
}

func (r *pgRepository) Create(ctx context.Context, userID int64, in SuggestInput) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO suggested_props (prop_text, notes, user_id) VALUES ($1, $2, $3) RETURNING id`,
		strings.TrimSpace(in.PropText), in.Notes, userID).Scan(&id)
	return id, err
}

func (r *pgRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM suggested_props WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
