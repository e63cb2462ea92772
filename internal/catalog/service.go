package catalog

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

const adminOnly = "only admins can change the catalog"

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

func (s *Service) ListCategories(ctx context.Context) (action.Result[[]Category], error) {
	return action.Optional(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[[]Category], error) {
		list, err := s.repoFor(q).ListCategories(ctx)
		if err != nil {
			return action.Result[[]Category]{}, err
		}
		return action.Ok(list), nil
	})
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (action.Result[Category], error) {
	return rbac.AsAdmin(ctx, s.runner, adminOnly, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Category], error) {
		if res, ok := action.Validate[Category](s.validator, in); !ok {
			return res, nil
		}
		c, err := s.repoFor(q).CreateCategory(ctx, in)
		if errors.Is(db.Classify(err), db.ErrUniqueViolation) {
			return action.Conflict[Category]("category already exists"), nil
		}
		if err != nil {
			return action.Result[Category]{}, err
		}
		s.logger.Info("category created", slog.String("actor", actor.String()), slog.Int64("category_id", c.ID))
		return action.Ok(c), nil
	})
}

func (s *Service) ListCompetitions(ctx context.Context) (action.Result[[]Competition], error) {
	return action.Optional(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[[]Competition], error) {
		list, err := s.repoFor(q).ListCompetitions(ctx)
		if err != nil {
			return action.Result[[]Competition]{}, err
		}
		return action.Ok(list), nil
	})
}

func (s *Service) GetCompetition(ctx context.Context, id int64) (action.Result[Competition], error) {
	return action.Optional(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[Competition], error) {
		c, err := s.repoFor(q).GetCompetition(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return action.NotFound[Competition]("competition"), nil
		}
		if err != nil {
			return action.Result[Competition]{}, err
		}
		return action.Ok(c), nil
	})
}

func (s *Service) CreateCompetition(ctx context.Context, in CompetitionInput) (action.Result[Competition], error) {
	return rbac.AsAdmin(ctx, s.runner, adminOnly, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Competition], error) {
		if res, ok := action.Validate[Competition](s.validator, in); !ok {
			return res, nil
		}
		c, err := s.repoFor(q).CreateCompetition(ctx, in)
		if errors.Is(db.Classify(err), db.ErrUniqueViolation) {
			return action.Conflict[Competition]("competition already exists"), nil
		}
		if err != nil {
			return action.Result[Competition]{}, err
		}
		s.logger.Info("competition created", slog.String("actor", actor.String()), slog.Int64("competition_id", c.ID))
		return action.Ok(c), nil
	})
}

// UpdateCompetition merges patch over the stored competition and validates
// the result as a whole, so date ordering holds across partial updates.
func (s *Service) UpdateCompetition(ctx context.Context, id int64, patch CompetitionPatch) (action.Result[Competition], error) {
	return rbac.AsAdmin(ctx, s.runner, adminOnly, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Competition], error) {
		repo := s.repoFor(q)
		current, err := repo.GetCompetition(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return action.NotFound[Competition]("competition"), nil
		}
		if err != nil {
			return action.Result[Competition]{}, err
		}
		in := patch.Apply(current)
		if res, ok := action.Validate[Competition](s.validator, in); !ok {
			return res, nil
		}
		n, err := repo.UpdateCompetition(ctx, id, in)
		if errors.Is(db.Classify(err), db.ErrUniqueViolation) {
			return action.Conflict[Competition]("competition already exists"), nil
		}
		if err != nil {
			return action.Result[Competition]{}, err
		}
		if n == 0 {
			return action.Unauthorized[Competition](adminOnly), nil
		}
		updated, err := repo.GetCompetition(ctx, id)
		if err != nil {
			return action.Result[Competition]{}, err
		}
		s.logger.Info("competition updated", slog.String("actor", actor.String()), slog.Int64("competition_id", id))
		return action.Ok(updated), nil
	})
}
