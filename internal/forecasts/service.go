package forecasts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// Writes that match no row read the same whether the forecast is missing or
// owned by someone else.
const msgNotYours = "you can only change your own forecasts"

type Service struct {
	runner    db.Runner
	repoFor   RepositoryFactory
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(runner db.Runner, repoFor RepositoryFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:    runner,
		repoFor:   repoFor,
		validator: action.NewValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// ListMine returns the caller's forecasts.
func (s *Service) ListMine(ctx context.Context, page shared.Page) (action.Result[[]Forecast], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[[]Forecast], error) {
		return s.list(ctx, q, Filter{UserID: actor.UserID()}, page)
	})
}

// ListForProp returns the forecasts on a prop the caller may see: their own,
// or every one for administrators.
func (s *Service) ListForProp(ctx context.Context, propID int64, page shared.Page) (action.Result[[]Forecast], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[[]Forecast], error) {
		return s.list(ctx, q, Filter{PropID: &propID}, page)
	})
}

func (s *Service) list(ctx context.Context, q db.DBTX, f Filter, page shared.Page) (action.Result[[]Forecast], error) {
	list, err := s.repoFor(q).List(ctx, f, page)
	if err != nil {
		return action.Result[[]Forecast]{}, err
	}
	return action.Ok(list), nil
}

// Create records the caller's forecast on an open prop.
func (s *Service) Create(ctx context.Context, in CreateInput) (action.Result[Forecast], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Forecast], error) {
		return s.create(ctx, actor, s.repoFor(q), in)
	})
}

// CreateBatch records several forecasts in one transaction. Any failure
// discards all of them.
func (s *Service) CreateBatch(ctx context.Context, inputs []CreateInput) (action.Result[[]Forecast], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[[]Forecast], error) {
		if len(inputs) == 0 || len(inputs) > MaxBatch {
			return action.Invalid[[]Forecast](fmt.Sprintf("a batch holds between 1 and %d forecasts", MaxBatch)), nil
		}
		repo := s.repoFor(q)
		out := make([]Forecast, 0, len(inputs))
		for i, in := range inputs {
			res, err := s.create(ctx, actor, repo, in)
			if err != nil {
				if failed, ok := action.FromError[Forecast](err); ok {
					res = failed
				} else {
					return action.Result[[]Forecast]{}, err
				}
			}
			if !res.Success {
				res.Error = fmt.Sprintf("forecast %d: %s", i+1, res.Error)
				return action.Recast[[]Forecast](res), nil
			}
			out = append(out, res.Data)
		}
		return action.Ok(out), nil
	})
}

func (s *Service) create(ctx context.Context, actor *shared.Actor, repo Repository, in CreateInput) (action.Result[Forecast], error) {
	if res, ok := action.Validate[Forecast](s.validator, in); !ok {
		return res, nil
	}
	prop, err := repo.Prop(ctx, in.PropID)
	if errors.Is(err, db.ErrNotFound) {
		return action.NotFound[Forecast]("prop"), nil
	}
	if err != nil {
		return action.Result[Forecast]{}, err
	}
	if reason := closedReason(prop, s.now()); reason != "" {
		return action.Invalid[Forecast](reason), nil
	}
	id, err := repo.Create(ctx, actor.ID, in.PropID, in.Forecast)
	if errors.Is(db.Classify(err), db.ErrUniqueViolation) {
		return action.Conflict[Forecast]("you already have a forecast on this prop"), nil
	}
	if err != nil {
		return action.Result[Forecast]{}, err
	}
	return s.load(ctx, repo, id)
}

// Update changes a forecast. The write runs first; if the prop turns out to
// be closed the result fails and the write is rolled back.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (action.Result[Forecast], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Forecast], error) {
		if res, ok := action.Validate[Forecast](s.validator, in); !ok {
			return res, nil
		}
		repo := s.repoFor(q)
		n, err := repo.Update(ctx, id, in.Forecast)
		if err != nil {
			return action.Result[Forecast]{}, err
		}
		if n == 0 {
			s.logger.Warn("forecast update matched no row", slog.String("actor", actor.String()), slog.Int64("forecast_id", id))
			return action.Unauthorized[Forecast](msgNotYours), nil
		}
		res, err := s.load(ctx, repo, id)
		if err != nil || !res.Success {
			return res, err
		}
		if closed, err := s.closed(ctx, repo, res.Data.PropID); err != nil || closed.Failed() {
			return action.Recast[Forecast](closed), err
		}
		return res, nil
	})
}

// Delete removes a forecast on a prop that is still open.
func (s *Service) Delete(ctx context.Context, id int64) (action.Result[action.Deleted], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[action.Deleted], error) {
		repo := s.repoFor(q)
		existing, err := repo.Get(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return action.Unauthorized[action.Deleted](msgNotYours), nil
		}
		if err != nil {
			return action.Result[action.Deleted]{}, err
		}
		if closed, err := s.closed(ctx, repo, existing.PropID); err != nil || closed.Failed() {
			return action.Recast[action.Deleted](closed), err
		}
		n, err := repo.Delete(ctx, id)
		if err != nil {
			return action.Result[action.Deleted]{}, err
		}
		if n == 0 {
			return action.Unauthorized[action.Deleted](msgNotYours), nil
		}
		s.logger.Info("forecast deleted", slog.String("actor", actor.String()), slog.Int64("forecast_id", id))
		return action.Ok(action.Deleted{ID: id}), nil
	})
}

// closed fails when the prop no longer takes forecasts.
func (s *Service) closed(ctx context.Context, repo Repository, propID int64) (action.Result[struct{}], error) {
	prop, err := repo.Prop(ctx, propID)
	if errors.Is(err, db.ErrNotFound) {
		return action.NotFound[struct{}]("prop"), nil
	}
	if err != nil {
		return action.Result[struct{}]{}, err
	}
	if reason := closedReason(prop, s.now()); reason != "" {
		return action.Invalid[struct{}](reason), nil
	}
	return action.Ok(struct{}{}), nil
}

func (s *Service) load(ctx context.Context, repo Repository, id int64) (action.Result[Forecast], error) {
	f, err := repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return action.NotFound[Forecast]("forecast"), nil
	}
	if err != nil {
		return action.Result[Forecast]{}, err
	}
	return action.Ok(f), nil
}
