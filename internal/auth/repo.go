package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
	"github.com/forecast-tournament/forecast/internal/views"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	IdentityStore
	Credentials(ctx context.Context, username string) (Credentials, error)
	CreateSession(ctx context.Context, userID int64, id string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, userID int64, id string) error
}

// PGRepository implements Repository on policy-scoped transactions. Login
// lookups run without an actor and go through SECURITY DEFINER functions.
type PGRepository struct {
	runner db.Runner
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(runner db.Runner) *PGRepository {
	return &PGRepository{runner: runner}
}

func (r *PGRepository) ActorForLogin(ctx context.Context, loginID int64) (*shared.Actor, error) {
	return db.WithPolicyContext(ctx, r.runner, nil, func(ctx context.Context, q db.DBTX) (*shared.Actor, error) {
		var (
			userID  int64
			isAdmin bool
		)
		err := q.QueryRow(ctx, `SELECT user_id, is_admin FROM actor_for_login($1)`, loginID).Scan(&userID, &isAdmin)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownLogin
		}
		if err != nil {
			return nil, err
		}
		return shared.NewActor(userID, isAdmin), nil
	})
}

func (r *PGRepository) ActorForUser(ctx context.Context, asUserID, userID int64) (*shared.Actor, error) {
	return db.WithPolicyContext(ctx, r.runner, &asUserID, func(ctx context.Context, q db.DBTX) (*shared.Actor, error) {
		u, err := views.ScanUser(q.QueryRow(ctx, `SELECT `+views.UserColumns+` FROM v_users WHERE id = $1`, userID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownLogin
		}
		if err != nil {
			return nil, err
		}
		return shared.NewActor(u.ID, u.IsAdmin), nil
	})
}

func (r *PGRepository) Credentials(ctx context.Context, username string) (Credentials, error) {
	return db.WithPolicyContext(ctx, r.runner, nil, func(ctx context.Context, q db.DBTX) (Credentials, error) {
		var c Credentials
		err := q.QueryRow(ctx, `SELECT login_id, password_hash FROM login_credentials($1)`, username).Scan(&c.LoginID, &c.PasswordHash)
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, shared.ErrInvalidCredentials
		}
		return c, err
	})
}

// CreateSession records a sign-in in user_sessions as the signed-in user.
func (r *PGRepository) CreateSession(ctx context.Context, userID int64, id string, expiresAt time.Time, ip, ua string) error {
	return r.runner.RunScoped(ctx, &userID, func(ctx context.Context, q db.DBTX) (bool, error) {
		_, err := q.Exec(ctx, `INSERT INTO user_sessions (id, user_id, expires_at, ip, user_agent)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))`, id, userID, expiresAt.UTC(), ip, ua)
		return err == nil, err
	})
}

// DeleteSession removes a sign-in record owned by userID.
func (r *PGRepository) DeleteSession(ctx context.Context, userID int64, id string) error {
	return r.runner.RunScoped(ctx, &userID, func(ctx context.Context, q db.DBTX) (bool, error) {
		_, err := q.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
		return err == nil, err
	})
}

var _ Repository = (*PGRepository)(nil)
