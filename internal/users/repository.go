package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Repository reads v_users and writes users on one policy-scoped handle.
type Repository interface {
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, page shared.Page) ([]User, error)
	Update(ctx context.Context, id int64, patch Patch) (int64, error)
}

// RepositoryFactory binds a Repository to a transaction handle.
type RepositoryFactory func(q db.DBTX) Repository

// PGRepository is the PostgreSQL Repository.
type PGRepository struct {
	q db.DBTX
}

// NewRepository constructs a repository on q.
func NewRepository(q db.DBTX) Repository {
	return &PGRepository{q: q}
}

// Get returns db.ErrNotFound when the row does not exist or is hidden.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	u, err := views.ScanUser(r.q.QueryRow(ctx,
		`SELECT `+views.UserColumns+` FROM `+views.Users+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, db.ErrNotFound
	}
	return u, err
}

// List returns visible users ordered by id.
func (r *PGRepository) List(ctx context.Context, page shared.Page) ([]User, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+views.UserColumns+` FROM `+views.Users+` ORDER BY id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return views.CollectRows(rows, views.ScanUser)
}

// Update applies patch and reports how many rows the policies let through.
func (r *PGRepository) Update(ctx context.Context, id int64, patch Patch) (int64, error) {
	a := &db.Assignments{}
	db.SetIf(a, "name", patch.Name)
	db.SetIf(a, "email", patch.Email)
	db.SetIf(a, "is_admin", patch.IsAdmin)
	a.Touch()
	return a.ExecUpdateByID(ctx, r.q, "users", id)
}
