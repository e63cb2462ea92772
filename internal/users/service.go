package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Service exposes the profile actions.
type Service struct {
	runner    db.Runner
	repoFor   RepositoryFactory
	validator *validator.Validate
	logger    *slog.Logger
}

// NewService constructs the service.
func NewService(runner db.Runner, repoFor RepositoryFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, repoFor: repoFor, validator: action.NewValidator(), logger: logger}
}

// GetMe returns the caller's own profile.
func (s *Service) GetMe(ctx context.Context) (action.Result[User], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[User], error) {
		u, err := s.repoFor(q).Get(ctx, actor.ID)
		if errors.Is(err, db.ErrNotFound) {
			return action.NotFound[User]("user"), nil
		}
		if err != nil {
			return action.Result[User]{}, err
		}
		return action.Ok(u), nil
	})
}

// UpdateProfile applies changes, keyed by column name, to user id. Naming a
// field outside the caller's allow-list is a validation error.
func (s *Service) UpdateProfile(ctx context.Context, id int64, changes map[string]json.RawMessage) (action.Result[User], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[User], error) {
		if len(changes) == 0 {
			return action.Invalid[User]("no fields to update"), nil
		}
		if res, ok := rbac.CheckFieldsResult[User](ProfileFields, actor, slices.Collect(maps.Keys(changes))); !ok {
			return res, nil
		}
		if !actor.IsAdmin() && id != actor.ID {
			return action.Unauthorized[User]("you can only update your own profile"), nil
		}
		patch, err := decodePatch(changes)
		if err != nil {
			return action.Invalid[User](err.Error()), nil
		}
		if res, ok := action.Validate[User](s.validator, patch); !ok {
			return res, nil
		}

		repo := s.repoFor(q)
		n, err := repo.Update(ctx, id, patch)
		if errors.Is(db.Classify(err), db.ErrUniqueViolation) {
			return action.Conflict[User]("email already in use"), nil
		}
		if err != nil {
			return action.Result[User]{}, err
		}
		if n == 0 {
			return action.NotFound[User]("user"), nil
		}
		u, err := repo.Get(ctx, id)
		if err != nil {
			return action.Result[User]{}, err
		}
		s.logger.Info("profile updated", slog.String("actor", actor.String()), slog.Int64("user_id", id))
		return action.Ok(u), nil
	})
}

// List returns every user. Admin only.
func (s *Service) List(ctx context.Context, page shared.Page) (action.Result[[]User], error) {
	return rbac.AsAdmin(ctx, s.runner, "only admins can list users", func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[[]User], error) {
		list, err := s.repoFor(q).List(ctx, page)
		if err != nil {
			return action.Result[[]User]{}, err
		}
		return action.Ok(list), nil
	})
}

func decodePatch(changes map[string]json.RawMessage) (Patch, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return Patch{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p Patch
	if err := dec.Decode(&p); err != nil {
		return Patch{}, errors.New("invalid profile update")
	}
	return p, nil
}
