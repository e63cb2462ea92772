package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecast-tournament/forecast/internal/action"
)

func TestRespondResultSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondResult(rec, nil, http.StatusCreated, action.Ok(map[string]int{"id": 7}), nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"id": float64(7)}, body["data"])
}

func TestRespondResultFailureCodes(t *testing.T) {
	cases := map[action.Code]int{
		action.CodeUnauthenticated: http.StatusUnauthorized,
		action.CodeUnauthorized:    http.StatusForbidden,
		action.CodeValidation:      http.StatusBadRequest,
		action.CodeNotFound:        http.StatusNotFound,
		action.CodeConflict:        http.StatusConflict,
	}
	for code, status := range cases {
		rec := httptest.NewRecorder()
		RespondResult(rec, nil, http.StatusOK, action.Fail[int](code, "nope"), nil)
		assert.Equal(t, status, rec.Code, code)
		assert.JSONEq(t, fmt.Sprintf(`{"success":false,"error":"nope","code":%q}`, code), rec.Body.String())
	}
}

func TestRespondResultHidesInfrastructureErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondResult(rec, nil, http.StatusOK, action.Result[int]{}, errors.New("dial tcp 10.0.0.5:5432: refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "something went wrong")
}

func TestRespondErrorBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, fmt.Errorf("%w: invalid json", ErrBadRequest))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Text *string `json:"text"`
	}
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"text":"renamed","user_id":2}`))
	err := DecodeJSON(req, &target)

	var unknown *UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "user_id", unknown.Field)

	rec := httptest.NewRecorder()
	RespondError(rec, nil, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"field \"user_id\" is not allowed","code":"VALIDATION_ERROR"}`, rec.Body.String())
}

func TestDecodeJSONMalformedBody(t *testing.T) {
	var target struct {
		Text string `json:"text"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrBadRequest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"ok"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "ok", target.Text)
}
