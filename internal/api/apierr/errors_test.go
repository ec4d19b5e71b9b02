package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/boulder/internal/middleware"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/calendar"
	"github.com/mcoot/boulder/internal/services/leaderboard"
	"github.com/mcoot/boulder/internal/services/progression"
	"github.com/mcoot/boulder/internal/testutil"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid date", calendar.ErrInvalidDate, http.StatusBadRequest, CodeInvalidDate},
		{"unknown player", model.ErrPlayerNotFound, http.StatusNotFound, CodeInvalidPlayer},
		{"already played", model.ErrAlreadyPlayed, http.StatusConflict, CodeAlreadyPlayed},
		{"wrapped already played", fmt.Errorf("commit: %w", model.ErrAlreadyPlayed), http.StatusConflict, CodeAlreadyPlayed},
		{"concurrent update", model.ErrConcurrentUpdate, http.StatusConflict, CodeConcurrentUpdate},
		{"rate limited", model.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
		{"bad limit", leaderboard.ErrInvalidLimit, http.StatusBadRequest, CodeInvalidRequest},
		{"missing header", NewMissingPlayerIDError(), http.StatusBadRequest, CodeMissingPlayerID},
		{"bad body", NewInvalidBodyError("nope"), http.StatusBadRequest, CodeInvalidBody},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.status, Status(tt.err))
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Error.HeightLost)
		})
	}
}

func TestRollbackErrorCarriesLoss(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, &progression.RollbackError{HeightLost: 7, StreakLost: 7, DaysMissed: 3})

	assert.Equal(t, http.StatusConflict, rr.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, CodeRollbackRequired, body["error"]["code"])
	assert.Equal(t, float64(7), body["error"]["heightLost"])
	assert.Equal(t, float64(7), body["error"]["streakLost"])
	assert.Equal(t, float64(3), body["error"]["daysMissed"])
}

func TestInternalErrorOmitsDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("pq: password authentication failed"))

	assert.NotContains(t, rr.Body.String(), "password")
}

func TestWritePanicThroughRecovery(t *testing.T) {
	handler := middleware.Recovery(testutil.NopLogger(), WritePanic)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":{"code":"internal_error","message":"Internal server error"}}`, rr.Body.String())
}
