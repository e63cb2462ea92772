package action

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/platform/db"
	"github.com/forecast-tournament/forecast/internal/shared"
)

// recordingRunner runs fn without a database and records the outcome.
type recordingRunner struct {
	calls     int
	actorIDs  []*int64
	committed []bool
	err       error
}

func (r *recordingRunner) RunScoped(ctx context.Context, actorID *int64, fn db.ScopedFunc) error {
	r.calls++
	r.actorIDs = append(r.actorIDs, actorID)
	commit, err := fn(ctx, nil)
	if err != nil {
		r.err = err
		r.committed = append(r.committed, false)
		return err
	}
	r.committed = append(r.committed, commit)
	return nil
}

func TestWithPolicyContextActionCommitsOnSuccess(t *testing.T) {
	r := &recordingRunner{}
	id := int64(4)
	res, err := WithPolicyContextAction(context.Background(), r, &id, func(context.Context, db.DBTX) (Result[string], error) {
		return Ok("done"), nil
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "done", res.Data)
	assert.Equal(t, []bool{true}, r.committed)
	assert.Equal(t, int64(4), *r.actorIDs[0])
}

func TestWithPolicyContextActionRollsBackFailedResult(t *testing.T) {
	r := &recordingRunner{}
	res, err := WithPolicyContextAction(context.Background(), r, nil, func(context.Context, db.DBTX) (Result[int], error) {
		return Invalid[int]("forecast must be between 0 and 1"), nil
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, CodeValidation, res.Code)
	assert.Equal(t, []bool{false}, r.committed)
}

func TestWithPolicyContextActionTurnsPolicyRejectionIntoResult(t *testing.T) {
	r := &recordingRunner{}
	res, err := WithPolicyContextAction(context.Background(), r, nil, func(context.Context, db.DBTX) (Result[int], error) {
		return Result[int]{}, &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}
	})
	require.NoError(t, err)
	assert.Equal(t, CodeUnauthorized, res.Code)
	assert.Equal(t, []bool{false}, r.committed)
}

func TestWithPolicyContextActionPropagatesInfrastructureErrors(t *testing.T) {
	r := &recordingRunner{}
	boom := errors.New("connection reset by peer")
	res, err := WithPolicyContextAction(context.Background(), r, nil, func(context.Context, db.DBTX) (Result[int], error) {
		return Ok(1), boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, []bool{false}, r.committed)
}

func TestAuthenticatedSkipsTransactionForAnonymous(t *testing.T) {
	r := &recordingRunner{}
	res, err := Authenticated(context.Background(), r, func(context.Context, *shared.Actor, db.DBTX) (Result[int], error) {
		t.Fatal("must not run")
		return Ok(0), nil
	})
	require.NoError(t, err)
	assert.Equal(t, CodeUnauthenticated, res.Code)
	assert.Zero(t, r.calls)
}

func TestAuthenticatedBindsEffectiveActor(t *testing.T) {
	r := &recordingRunner{}
	ctx := shared.ContextWithActors(context.Background(), shared.NewActor(5, false), shared.NewActor(1, true))
	res, err := Authenticated(ctx, r, func(_ context.Context, actor *shared.Actor, _ db.DBTX) (Result[int64], error) {
		return Ok(actor.ID), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Data)
	assert.Equal(t, int64(5), *r.actorIDs[0])
}

func TestOptionalRunsAnonymously(t *testing.T) {
	r := &recordingRunner{}
	res, err := Optional(context.Background(), r, func(_ context.Context, actor *shared.Actor, _ db.DBTX) (Result[bool], error) {
		return Ok(actor == nil), nil
	})
	require.NoError(t, err)
	assert.True(t, res.Data)
	assert.Equal(t, 1, r.calls)
	assert.Nil(t, r.actorIDs[0])
}

func TestFromError(t *testing.T) {
	cases := map[Code]error{
		CodeNotFound:   db.ErrNotFound,
		CodeConflict:   &pgconn.PgError{Code: "23505"},
		CodeValidation: &pgconn.PgError{Code: "23514"},
	}
	for code, err := range cases {
		res, ok := FromError[int](err)
		require.True(t, ok, code)
		assert.Equal(t, code, res.Code)
	}
	_, ok := FromError[int](errors.New("timeout"))
	assert.False(t, ok)
	_, ok = FromError[int](nil)
	assert.False(t, ok)
}

func TestRecast(t *testing.T) {
	res := Recast[string](NotFound[int]("prop"))
	assert.Equal(t, CodeNotFound, res.Code)
	assert.Equal(t, "prop not found", res.Error)
}

type profileInput struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"required,email"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()
	_, ok := Validate[int](v, profileInput{Name: "Ada", Email: "ada@example.com"})
	assert.True(t, ok)

	res, ok := Validate[int](v, profileInput{Name: "", Email: "nope"})
	assert.False(t, ok)
	assert.Equal(t, CodeValidation, res.Code)
	assert.Equal(t, "email must be a valid email; name is required", res.Error)
}

func TestResultJSONShape(t *testing.T) {
	raw, err := json.Marshal(Ok([]int{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(raw))

	raw, err = json.Marshal(NotFound[[]int]("prop"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"prop not found","code":"NOT_FOUND"}`, string(raw))

	var back Result[Deleted]
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"data":{"id":4}}`), &back))
	assert.Equal(t, Ok(Deleted{ID: 4}), back)
}
