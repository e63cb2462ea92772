package props

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/shared"
)

const (
	msgSingleScope = "a prop belongs to a competition or to a user, not both"
	msgNotOwner    = "only the prop owner or an admin can do this"
)

type Service struct {
	runner    db.Runner
	repoFor   RepositoryFactory
	validator *validator.Validate
	logger    *slog.Logger
}

func NewService(runner db.Runner, repoFor RepositoryFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, repoFor: repoFor, validator: action.NewValidator(), logger: logger}
}

// List returns the props visible to the caller: public props for everyone,
// plus the caller's personal props.
func (s *Service) List(ctx context.Context, filter Filter, page shared.Page) (action.Result[[]Prop], error) {
	return action.Optional(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[[]Prop], error) {
		list, err := s.repoFor(q).List(ctx, filter, page)
		if err != nil {
			return action.Result[[]Prop]{}, err
		}
		return action.Ok(list), nil
	})
}

func (s *Service) Get(ctx context.Context, id int64) (action.Result[Prop], error) {
	return action.Optional(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[Prop], error) {
		return s.load(ctx, s.repoFor(q), id)
	})
}

// Create adds a prop. Users create personal props owned by themselves;
// admins may create competition props, public props or props for anyone.
func (s *Service) Create(ctx context.Context, in CreateInput) (action.Result[Prop], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Prop], error) {
		if res, ok := action.Validate[Prop](s.validator, in); !ok {
			return res, nil
		}
		if in.CompetitionID != nil && in.UserID != nil {
			return action.Invalid[Prop](msgSingleScope), nil
		}
		in, denied := scopeFor(actor, in)
		if denied != "" {
			return action.Unauthorized[Prop](denied), nil
		}
		repo := s.repoFor(q)
		id, err := repo.Create(ctx, in)
		if err != nil {
			return action.Result[Prop]{}, err
		}
		s.logger.Info("prop created", slog.String("actor", actor.String()), slog.Int64("prop_id", id))
		return s.load(ctx, repo, id)
	})
}

func scopeFor(actor *shared.Actor, in CreateInput) (CreateInput, string) {
	switch actor.Role {
	case shared.RoleAdmin:
		return in, ""
	case shared.RoleUser:
		if in.CompetitionID != nil {
			return in, "only admins can add props to a competition"
		}
		if in.UserID != nil && *in.UserID != actor.ID {
			return in, "you can only create props for yourself"
		}
		in.UserID = actor.UserID()
		return in, ""
	default:
		return in, "you are not allowed to create props"
	}
}

// Update edits a prop the caller owns, or any prop for admins.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (action.Result[Prop], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Prop], error) {
		fields := patch.Fields()
		if len(fields) == 0 {
			return action.Invalid[Prop]("no fields to update"), nil
		}
		if res, ok := rbac.CheckFieldsResult[Prop](EditableFields, actor, fields); !ok {
			return res, nil
		}
		if res, ok := action.Validate[Prop](s.validator, patch); !ok {
			return res, nil
		}
		repo := s.repoFor(q)
		n, err := repo.Update(ctx, id, patch)
		if errors.Is(db.Classify(err), db.ErrCheckViolation) {
			return action.Invalid[Prop](msgSingleScope), nil
		}
		if err != nil {
			return action.Result[Prop]{}, err
		}
		if n == 0 {
			return denyOrMissing[Prop](ctx, repo, id)
		}
		return s.load(ctx, repo, id)
	})
}

// Delete removes a prop with its forecasts and resolution.
func (s *Service) Delete(ctx context.Context, id int64) (action.Result[action.Deleted], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[action.Deleted], error) {
		repo := s.repoFor(q)
		n, err := repo.Delete(ctx, id)
		if err != nil {
			return action.Result[action.Deleted]{}, err
		}
		if n == 0 {
			return denyOrMissing[action.Deleted](ctx, repo, id)
		}
		s.logger.Info("prop deleted", slog.String("actor", actor.String()), slog.Int64("prop_id", id))
		return action.Ok(action.Deleted{ID: id}), nil
	})
}

// Resolve records the outcome of a prop. The resolution row is owned by the
// prop's owner.
func (s *Service) Resolve(ctx context.Context, id int64, in ResolveInput) (action.Result[Prop], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Prop], error) {
		if res, ok := action.Validate[Prop](s.validator, in); !ok {
			return res, nil
		}
		repo := s.repoFor(q)
		prop, res, err := editable(ctx, actor, repo, id)
		if err != nil || !res.Success {
			return res, err
		}
		if prop.Resolved() {
			return action.Conflict[Prop]("prop already resolved"), nil
		}
		if err := repo.CreateResolution(ctx, id, prop.UserID, in); err != nil {
			return action.Result[Prop]{}, err
		}
		s.logger.Info("prop resolved", slog.String("actor", actor.String()), slog.Int64("prop_id", id), slog.Bool("resolution", in.Resolution))
		return s.load(ctx, repo, id)
	})
}

// Unresolve removes the outcome of a prop.
func (s *Service) Unresolve(ctx context.Context, id int64) (action.Result[Prop], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Prop], error) {
		repo := s.repoFor(q)
		prop, res, err := editable(ctx, actor, repo, id)
		if err != nil || !res.Success {
			return res, err
		}
		if !prop.Resolved() {
			return action.NotFound[Prop]("resolution"), nil
		}
		n, err := repo.DeleteResolution(ctx, id)
		if err != nil {
			return action.Result[Prop]{}, err
		}
		if n == 0 {
			return action.Unauthorized[Prop](msgNotOwner), nil
		}
		s.logger.Info("prop unresolved", slog.String("actor", actor.String()), slog.Int64("prop_id", id))
		return s.load(ctx, repo, id)
	})
}

func (s *Service) load(ctx context.Context, repo Repository, id int64) (action.Result[Prop], error) {
	p, err := repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return action.NotFound[Prop]("prop"), nil
	}
	if err != nil {
		return action.Result[Prop]{}, err
	}
	return action.Ok(p), nil
}

// editable loads a prop the actor may change.
func editable(ctx context.Context, actor *shared.Actor, repo Repository, id int64) (Prop, action.Result[Prop], error) {
	p, err := repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return Prop{}, action.NotFound[Prop]("prop"), nil
	}
	if err != nil {
		return Prop{}, action.Result[Prop]{}, err
	}
	if !actor.IsAdmin() && !actor.Owns(p.UserID) {
		return Prop{}, action.Unauthorized[Prop](msgNotOwner), nil
	}
	return p, action.Ok(p), nil
}

// denyOrMissing explains a write that matched no row: the prop is either
// absent or visible but not writable by the caller.
func denyOrMissing[T any](ctx context.Context, repo Repository, id int64) (action.Result[T], error) {
	_, err := repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return action.NotFound[T]("prop"), nil
	}
	if err != nil {
		return action.Result[T]{}, err
	}
	return action.Unauthorized[T](msgNotOwner), nil
}
