package props

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

// Repository reads v_props and writes props and resolutions.
type Repository interface {
	List(ctx context.Context, filter Filter, page shared.Page) ([]Prop, error)
	Get(ctx context.Context, id int64) (Prop, error)
	Create(ctx context.Context, in CreateInput) (int64, error)
	Update(ctx context.Context, id int64, patch Patch) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	CreateResolution(ctx context.Context, propID int64, ownerID *int64, in ResolveInput) error
	DeleteResolution(ctx context.Context, propID int64) (int64, error)
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

func (r *pgRepository) List(ctx context.Context, f Filter, page shared.Page) ([]Prop, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CompetitionID != nil {
		where = append(where, "competition_id = "+arg(*f.CompetitionID))
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = "+arg(*f.CategoryID))
	}
	if f.Personal != nil {
		where = append(where, nullCheck("user_id", *f.Personal))
	}
	if f.Resolved != nil {
		where = append(where, nullCheck("resolution", *f.Resolved))
	}

	query := `SELECT ` + views.PropColumns + ` FROM ` + views.Props
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id LIMIT ` + arg(page.Limit) + ` OFFSET ` + arg(page.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return views.CollectRows(rows, views.ScanProp)
}

func nullCheck(column string, set bool) string {
	if set {
		return column + " IS NOT NULL"
	}
	return column + " IS NULL"
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Prop, error) {
	p, err := views.ScanProp(r.q.QueryRow(ctx,
		`SELECT `+views.PropColumns+` FROM `+views.Props+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Prop{}, db.ErrNotFound
	}
	return p, err
}

func (r *pgRepository) Create(ctx context.Context, in CreateInput) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO props (text, notes, category_id, competition_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		strings.TrimSpace(in.Text), in.Notes, in.CategoryID, in.CompetitionID, in.UserID,
	).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, id int64, p Patch) (int64, error) {
	a := &db.Assignments{}
	if p.Text != nil {
		a.Set("text", strings.TrimSpace(*p.Text))
	}
	db.SetIf(a, "notes", p.Notes)
	db.SetIf(a, "category_id", p.CategoryID)
	db.SetIf(a, "competition_id", p.CompetitionID)
	a.Touch()
	return a.ExecUpdateByID(ctx, r.q, "props", id)
}

func (r *pgRepository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM props WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *pgRepository) CreateResolution(ctx context.Context, propID int64, ownerID *int64, in ResolveInput) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO resolutions (prop_id, resolution, notes, user_id)
		VALUES ($1, $2, $3, $4)`,
		propID, in.Resolution, in.Notes, ownerID)
	return err
}

func (r *pgRepository) DeleteResolution(ctx context.Context, propID int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM resolutions WHERE prop_id = $1`, propID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
