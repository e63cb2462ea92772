package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/forecast-tournament/forecast/internal/platform/db"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPurge removes identity-provider sessions past expiry.
	TaskSessionsPurge = "sessions:purge"
)

// PurgeSessionsPayload is carried by sessions:purge tasks. Reason is only
// logged; it tells cron runs apart from manual ones.
type PurgeSessionsPayload struct {
	Reason string `json:"reason"`
}

// NewPurgeSessionsTask constructs an Asynq task.
func NewPurgeSessionsTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(PurgeSessionsPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsPurge, data), nil
}

// PurgeSessionsJob deletes expired user_sessions rows through the
// purge_expired_sessions() definer function. It runs without an actor, so
// the table's policies would hide every row from a plain DELETE.
type PurgeSessionsJob struct {
	Runner db.Runner
	Logger *slog.Logger
}

// NewPurgeSessionsJob initialises the purge handler.
func NewPurgeSessionsJob(runner db.Runner, logger *slog.Logger) *PurgeSessionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeSessionsJob{Runner: runner, Logger: logger}
}

// Handle executes the purge.
func (j *PurgeSessionsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("sessions purge: handler not configured")
	}
	var payload PurgeSessionsPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("sessions purge: decode payload: %w", asynq.SkipRetry)
		}
	}
	removed, err := db.WithPolicyContext(ctx, j.Runner, nil, func(ctx context.Context, q db.DBTX) (int, error) {
		var n int
		err := q.QueryRow(ctx, `SELECT purge_expired_sessions()`).Scan(&n)
		return n, err
	})
	if err != nil {
		j.Logger.Error("purge expired sessions", slog.Any("error", err))
		return err
	}
	j.Logger.Info("purged expired sessions",
		slog.String("job", TaskSessionsPurge),
		slog.String("reason", payload.Reason),
		slog.Int("removed", removed))
	return nil
}
