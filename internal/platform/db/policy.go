package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SessionVariable is the transaction-local setting every row-level policy
// reads through app_current_user_id(). Renaming it means rewriting every
// policy.
const SessionVariable = "app.current_user_id"

// The third argument makes the setting local to the transaction, so a pooled
// connection never carries an actor into the next transaction.
const bindActorSQL = "SELECT set_config('" + SessionVariable + "', $1, true)"

// Policy transaction outcomes reported to the Observer.
const (
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
	OutcomeError    = "error"
)

// ScopedFunc runs inside a policy-scoped transaction. Returning commit=false
// with a nil error rolls back without failing the caller.
type ScopedFunc func(ctx context.Context, q DBTX) (commit bool, err error)

// Runner opens policy-scoped transactions.
type Runner interface {
	RunScoped(ctx context.Context, actorID *int64, fn ScopedFunc) error
}

// Observer receives one event per policy transaction.
type Observer interface {
	ObservePolicyTx(outcome string, elapsed time.Duration)
}

// PolicyContext binds the current actor to every transaction it opens.
type PolicyContext struct {
	pool      Beginner
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	txOptions pgx.TxOptions
}

// Option configures a PolicyContext.
type Option func(*PolicyContext)

// WithLogger sets the logger used for rollback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *PolicyContext) { p.logger = logger }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *PolicyContext) { p.observer = o }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *PolicyContext) { p.tracer = t }
}

// WithTxOptions overrides the transaction options (default read committed).
func WithTxOptions(opts pgx.TxOptions) Option {
	return func(p *PolicyContext) { p.txOptions = opts }
}

// NewPolicyContext constructs a PolicyContext on top of a pool.
func NewPolicyContext(pool Beginner, opts ...Option) *PolicyContext {
	p := &PolicyContext{
		pool:   pool,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/forecast-tournament/forecast/internal/platform/db"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunScoped opens a transaction, binds actorID (or clears the binding when
// nil) as its first statement and runs fn on the transaction handle. The
// transaction commits only when fn returns (true, nil); errors, panics,
// commit=false and cancelled contexts all roll back.
func (p *PolicyContext) RunScoped(ctx context.Context, actorID *int64, fn ScopedFunc) (err error) {
	ctx, span := p.tracer.Start(ctx, "db.policy_tx", trace.WithAttributes(
		attribute.Bool("actor.present", actorID != nil),
	))
	start := time.Now()
	outcome := OutcomeError
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "policy transaction failed")
		}
		span.SetAttributes(attribute.String("tx.outcome", outcome))
		span.End()
		if p.observer != nil {
			p.observer.ObservePolicyTx(outcome, time.Since(start))
		}
	}()

	tx, err := p.pool.BeginTx(ctx, p.txOptions)
	if err != nil {
		return fmt.Errorf("platform/db: begin policy tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.logger.Warn("policy tx rollback", slog.Any("error", rbErr))
		}
	}()

	if _, err := tx.Exec(ctx, bindActorSQL, actorSetting(actorID)); err != nil {
		return fmt.Errorf("platform/db: bind actor: %w", err)
	}

	commit, err := fn(ctx, tx)
	if err != nil {
		return err
	}
	if !commit {
		outcome = OutcomeRollback
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit policy tx: %w", err)
	}
	committed = true
	outcome = OutcomeCommit
	return nil
}

// WithPolicyContext runs fn in a policy-scoped transaction and returns its
// value. Any error rolls the transaction back and is returned unchanged.
func WithPolicyContext[T any](ctx context.Context, r Runner, actorID *int64, fn func(ctx context.Context, q DBTX) (T, error)) (T, error) {
	var out T
	err := r.RunScoped(ctx, actorID, func(ctx context.Context, q DBTX) (bool, error) {
		v, err := fn(ctx, q)
		if err != nil {
			return false, err
		}
		out = v
		return true, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func actorSetting(actorID *int64) string {
	if actorID == nil {
		return ""
	}
	return strconv.FormatInt(*actorID, 10)
}
