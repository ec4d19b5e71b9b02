package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/boulder/internal/dependencies/mocks"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/player"
	"github.com/mcoot/boulder/internal/services/ratelimit"
	"github.com/mcoot/boulder/internal/storage/memory"
	"github.com/mcoot/boulder/internal/testutil"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func newPlayers(t *testing.T) (*player.Service, model.PlayerID) {
	t.Helper()

	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ids := mocks.NewMockIDs()
	players := player.New(memory.New(), clock, ids, nil, testutil.NopLogger())

	p, err := players.Register(context.Background())
	require.NoError(t, err)
	return players, p.ID
}

func withHeader(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/push", nil)
	if id != "" {
		req.Header.Set(PlayerIDHeader, id)
	}
	return req
}

func TestRequirePlayer(t *testing.T) {
	players, id := newPlayers(t)

	var seen model.PlayerID
	handler := RequirePlayer(players)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustGetPlayerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withHeader("  "+string(id)+" "))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, id, seen)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withHeader(""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing_player_id")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withHeader("ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_player")
}

func TestOptionalPlayer(t *testing.T) {
	var got model.PlayerID
	handler := OptionalPlayer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPlayerID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), withHeader("anyone"))
	assert.Equal(t, model.PlayerID("anyone"), got)

	handler.ServeHTTP(httptest.NewRecorder(), withHeader(""))
	assert.Empty(t, got)
}

func TestLimitPlayerRejects(t *testing.T) {
	players, id := newPlayers(t)
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := ratelimit.NewMemory(ratelimit.Config{MaxAttempts: 1, Window: time.Minute}, clock)
	logger, logs := testutil.RecordingLogger()

	handler := RequirePlayer(players)(LimitPlayer(limiter, nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withHeader(string(id)))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withHeader(string(id)))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "rate_limited")

	entries := logs.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, string(id), entries[0]["player_id"])
}

func TestLimitPlayerFailsOpen(t *testing.T) {
	players, id := newPlayers(t)
	logger, logs := testutil.RecordingLogger()

	handler := RequirePlayer(players)(LimitPlayer(failingLimiter{}, nil, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withHeader(string(id)))
	assert.Equal(t, http.StatusOK, rr.Code)

	entries := logs.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "rate limiter unavailable", entries[0]["msg"])
}

func TestThrottleByAddr(t *testing.T) {
	throttle := ratelimit.NewThrottle(0.001, 1)
	handler := ThrottleByAddr(throttle, nil, testutil.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/player/register", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusCreated, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5001"), "port is not part of the key")
	assert.Equal(t, http.StatusCreated, send("10.0.0.2:5000"))
}
