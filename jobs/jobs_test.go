package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
)

type intRow struct {
	n   int
	err error
}

func (r intRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.n
	return nil
}

type purgeDB struct {
	queries []string
	removed int
	err     error
}

func (d *purgeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func (d *purgeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (d *purgeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	d.queries = append(d.queries, sql)
	return intRow{n: d.removed, err: d.err}
}

type recordingRunner struct {
	q       db.DBTX
	actors  []*int64
	commits int
}

func (r *recordingRunner) RunScoped(ctx context.Context, actorID *int64, fn db.ScopedFunc) error {
	r.actors = append(r.actors, actorID)
	commit, err := fn(ctx, r.q)
	if err == nil && commit {
		r.commits++
	}
	return err
}

func TestPurgeSessionsRunsDefinerFunctionWithoutActor(t *testing.T) {
	store := &purgeDB{removed: 4}
	runner := &recordingRunner{q: store}
	job := NewPurgeSessionsJob(runner, nil)

	task, err := NewPurgeSessionsTask("cron")
	require.NoError(t, err)
	require.Equal(t, TaskSessionsPurge, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []string{"SELECT purge_expired_sessions()"}, store.queries)
	require.Len(t, runner.actors, 1)
	assert.Nil(t, runner.actors[0])
	assert.Equal(t, 1, runner.commits)
}

func TestPurgeSessionsPropagatesDatabaseErrors(t *testing.T) {
	runner := &recordingRunner{q: &purgeDB{err: errors.New("connection reset")}}
	job := NewPurgeSessionsJob(runner, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskSessionsPurge, nil))
	require.ErrorContains(t, err, "connection reset")
	assert.Zero(t, runner.commits)
}

func TestPurgeSessionsRejectsMalformedPayload(t *testing.T) {
	job := NewPurgeSessionsJob(&recordingRunner{q: &purgeDB{}}, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskSessionsPurge, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type recordingObserver struct {
	tasks []string
	errs  []error
}

func (o *recordingObserver) ObserveJob(task string, err error) {
	o.tasks = append(o.tasks, task)
	o.errs = append(o.errs, err)
}

func TestObservedHandlerReportsOutcome(t *testing.T) {
	obs := &recordingObserver{}
	boom := errors.New("boom")
	h := observed(TaskSessionsPurge, func(context.Context, *asynq.Task) error { return boom }, obs)

	require.ErrorIs(t, h(context.Background(), asynq.NewTask(TaskSessionsPurge, nil)), boom)
	assert.Equal(t, []string{TaskSessionsPurge}, obs.tasks)
	assert.Equal(t, []error{boom}, obs.errs)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func healthRequest(t *testing.T, h *Handler, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsAdminOnly(t *testing.T) {
	h := NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 2}}, nil)

	assert.Equal(t, http.StatusUnauthorized, healthRequest(t, h, nil).Code)
	assert.Equal(t, http.StatusForbidden, healthRequest(t, h, shared.NewActor(1, false)).Code)

	rec := healthRequest(t, h, shared.NewActor(9, true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":2,"active":0,"scheduled":0,"retry":0}`, rec.Body.String())
}

func TestHealthReportsUnavailableQueue(t *testing.T) {
	h := NewHandler(fakeInspector{err: errors.New("redis down")}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, healthRequest(t, h, shared.NewActor(9, true)).Code)
}
