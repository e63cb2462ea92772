package suggestions

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/forecast-tournament/forecast/internal/action"
	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/props"
	"github.com/forecast-tournament/forecast/internal/rbac"
	"github.com/forecast-tournament/forecast/internal/shared"
)

const adminOnly = "only admins can review suggestions"

type Service struct {
	runner    db.Runner
	repoFor   RepositoryFactory
	propsFor  props.RepositoryFactory
	validator *validator.Validate
	logger    *slog.Logger
}

func NewService(runner db.Runner, repoFor RepositoryFactory, propsFor props.RepositoryFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runner: runner, repoFor: repoFor, propsFor: propsFor, validator: action.NewValidator(), logger: logger}
}

// Suggest files a prop suggestion owned by the caller.
func (s *Service) Suggest(ctx context.Context, in SuggestInput) (action.Result[Suggestion], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[Suggestion], error) {
		if res, ok := action.Validate[Suggestion](s.validator, in); !ok {
			return res, nil
		}
		repo := s.repoFor(q)
		id, err := repo.Create(ctx, actor.ID, in)
		if err != nil {
			return action.Result[Suggestion]{}, err
		}
		return s.load(ctx, repo, id)
	})
}

// List returns the caller's suggestions, or all of them for admins.
func (s *Service) List(ctx context.Context, page shared.Page) (action.Result[[]Suggestion], error) {
	return action.Authenticated(ctx, s.runner, func(ctx context.Context, _ *shared.Actor, q db.DBTX) (action.Result[[]Suggestion], error) {
		list, err := s.repoFor(q).List(ctx, page)
		if err != nil {
			return action.Result[[]Suggestion]{}, err
		}
		return action.Ok(list), nil
	})
}

// Approve turns a suggestion into a public prop and removes the suggestion,
// both in one transaction.
func (s *Service) Approve(ctx context.Context, id int64, in ApproveInput) (action.Result[props.Prop], error) {
	return rbac.AsAdmin(ctx, s.runner, adminOnly, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[props.Prop], error) {
		if res, ok := action.Validate[props.Prop](s.validator, in); !ok {
			return res, nil
		}
		repo, propRepo := s.repoFor(q), s.propsFor(q)
		suggestion, err := repo.Get(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return action.NotFound[props.Prop]("suggestion"), nil
		}
		if err != nil {
			return action.Result[props.Prop]{}, err
		}

		text := suggestion.PropText
		if in.Text != nil {
			text = *in.Text
		}
		notes := suggestion.Notes
		if in.Notes != nil {
			notes = in.Notes
		}
		propID, err := propRepo.Create(ctx, props.CreateInput{
			Text:          text,
			Notes:         notes,
			CategoryID:    in.CategoryID,
			CompetitionID: in.CompetitionID,
		})
		if err != nil {
			return action.Result[props.Prop]{}, err
		}
		n, err := repo.Delete(ctx, id)
		if err != nil {
			return action.Result[props.Prop]{}, err
		}
		if n == 0 {
			return action.Unauthorized[props.Prop](adminOnly), nil
		}

		prop, err := propRepo.Get(ctx, propID)
		if err != nil {
			return action.Result[props.Prop]{}, err
		}
		s.logger.Info("suggestion approved", slog.String("actor", actor.String()),
			slog.Int64("suggestion_id", id), slog.Int64("prop_id", propID))
		return action.Ok(prop), nil
	})
}

// Reject discards a suggestion.
func (s *Service) Reject(ctx context.Context, id int64) (action.Result[action.Deleted], error) {
	return rbac.AsAdmin(ctx, s.runner, adminOnly, func(ctx context.Context, actor *shared.Actor, q db.DBTX) (action.Result[action.Deleted], error) {
		n, err := s.repoFor(q).Delete(ctx, id)
		if err != nil {
			return action.Result[action.Deleted]{}, err
		}
		if n == 0 {
			return action.NotFound[action.Deleted]("suggestion"), nil
		}
		s.logger.Info("suggestion rejected", slog.String("actor", actor.String()), slog.Int64("suggestion_id", id))
		return action.Ok(action.Deleted{ID: id}), nil
	})
}

func (s *Service) load(ctx context.Context, repo Repository, id int64) (action.Result[Suggestion], error) {
	sp, err := repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return action.NotFound[Suggestion]("suggestion"), nil
	}
	if err != nil {
		return action.Result[Suggestion]{}, err
	}
	return action.Ok(sp), nil
}
