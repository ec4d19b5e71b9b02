package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/boulder/internal/api/apierr"
	"github.com/mcoot/boulder/internal/api/response"
	"github.com/mcoot/boulder/internal/factory"
)

// testServer wraps the router built from a test app with a controllable clock
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
	clients int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	return &testServer{
		handler: app.Router(),
		app:     app,
	}
}

type requestOption func(*http.Request)

func withPlayer(id string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("X-Player-Id", id)
	}
}

func fromAddr(addr string) requestOption {
	return func(r *http.Request) {
		r.RemoteAddr = addr
	}
}

func (ts *testServer) request(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = &bytes.Buffer{}
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// register creates a player from a fresh address so tests never trip the
// registration throttle by accident
func (ts *testServer) register(t *testing.T) string {
	t.Helper()
	ts.clients++

	rr := ts.request(http.MethodPost, "/api/player/register", nil,
		fromAddr(fmt.Sprintf("10.0.0.%d:4000", ts.clients)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp response.Registered
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func (ts *testServer) push(id, date string) *httptest.ResponseRecorder {
	return ts.request(http.MethodPost, "/api/push", map[string]string{"localDate": date}, withPlayer(id))
}

func (ts *testServer) state(t *testing.T, id, date string) response.PlayerState {
	t.Helper()

	rr := ts.request(http.MethodGet, "/api/player?localDate="+date, nil, withPlayer(id))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp response.PlayerState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Error
}

func decodeProgress(t *testing.T, rr *httptest.ResponseRecorder) response.Progress {
	t.Helper()

	var resp response.Progress
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRegisterThenFirstPush(t *testing.T) {
	ts := newTestServer(t)
	id := ts.register(t)

	state := ts.state(t, id, "2024-01-01")
	assert.Equal(t, id, state.ID)
	assert.Zero(t, state.Height)
	assert.Nil(t, state.LastPlayedDate)
	assert.False(t, state.HasPlayedToday)
	assert.False(t, state.NeedsRollback)

	rr := ts.push(id, "2024-01-01")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"success":true,"height":1,"streak":1}`, rr.Body.String())

	state = ts.state(t, id, "2024-01-01")
	require.NotNil(t, state.LastPlayedDate)
	assert.Equal(t, "2024-01-01", *state.LastPlayedDate)
	assert.True(t, state.HasPlayedToday)
	assert.Equal(t, 1, state.TotalPushes)

	rr = ts.push(id, "2024-01-01")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyPlayed, decodeError(t, rr).Code)
}

func TestStateWithoutPlayerIsFresh(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/player?localDate=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var state response.PlayerState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	assert.Empty(t, state.ID)
	assert.Zero(t, state.Height)
	assert.False(t, state.HasPlayedToday)
}

func TestStateErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.register(t)

	rr := ts.request(http.MethodGet, "/api/player?localDate=2024-02-30", nil, withPlayer(id))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidDate, decodeError(t, rr).Code)

	rr = ts.request(http.MethodGet, "/api/player?localDate=2024-01-01", nil, withPlayer("ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeInvalidPlayer, decodeError(t, rr).Code)
}

func TestPushValidation(t *testing.T) {
	ts := newTestServer(t)
	id := ts.register(t)

	tests := []struct {
		name   string
		body   any
		opts   []requestOption
		status int
		code   string
	}{
		{"missing header", map[string]string{"localDate": "2024-01-01"}, nil, http.StatusBadRequest, apierr.CodeMissingPlayerID},
		{"unknown player", map[string]string{"localDate": "2024-01-01"}, []requestOption{withPlayer("ghost")}, http.StatusNotFound, apierr.CodeInvalidPlayer},
		{"empty body", nil, []requestOption{withPlayer(id)}, http.StatusBadRequest, apierr.CodeInvalidBody},
		{"malformed json", `{"localDate":`, []requestOption{withPlayer(id)}, http.StatusBadRequest, apierr.CodeInvalidBody},
		{"missing date", `{}`, []requestOption{withPlayer(id)}, http.StatusBadRequest, apierr.CodeInvalidDate},
		{"impossible date", map[string]string{"localDate": "2023-02-29"}, []requestOption{withPlayer(id)}, http.StatusBadRequest, apierr.CodeInvalidDate},
		{"wrong shape", map[string]string{"localDate": "01/02/2024"}, []requestOption{withPlayer(id)}, http.StatusBadRequest, apierr.CodeInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/push", tt.body, tt.opts...)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}

	// None of the rejected requests touched the player
	state := ts.state(t, id, "2024-01-01")
	assert.Zero(t, state.TotalPushes)
}

func TestRollbackFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.register(t)

	for _, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		require.Equal(t, http.StatusOK, ts.push(id, date).Code)
	}

	// Missing two days is reported with the loss, and nothing changes yet
	rr := ts.push(id, "2024-01-06")
	require.Equal(t, http.StatusConflict, rr.Code)
	apiErr := decodeError(t, rr)
	assert.Equal(t, apierr.CodeRollbackRequired, apiErr.Code)
	require.NotNil(t, apiErr.HeightLost)
	require.NotNil(t, apiErr.StreakLost)
	require.NotNil(t, apiErr.DaysMissed)
	assert.Equal(t, 3, *apiErr.HeightLost)
	assert.Equal(t, 3, *apiErr.StreakLost)
	assert.Equal(t, 2, *apiErr.DaysMissed)

	state := ts.state(t, id, "2024-01-06")
	assert.True(t, state.NeedsRollback)
	assert.Equal(t, 3, state.Height)
	assert.Equal(t, 3, state.PreviousHeight)

	// Retrying the push reports the same fall
	rr = ts.push(id, "2024-01-06")
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeRollbackRequired, decodeError(t, rr).Code)

	// Acknowledge resets the climb
	rr = ts.request(http.MethodPost, "/api/push/acknowledge-rollback",
		map[string]string{"localDate": "2024-01-06"}, withPlayer(id))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, response.Progress{Success: true, Height: 0, Streak: 0}, decodeProgress(t, rr))

	state = ts.state(t, id, "2024-01-06")
	assert.False(t, state.NeedsRollback)
	assert.Equal(t, 1, state.DeathCount)
	assert.Equal(t, 3, state.MaxHeight)

	// Acknowledging again is harmless
	rr = ts.request(http.MethodPost, "/api/push/acknowledge-rollback", nil, withPlayer(id))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, ts.state(t, id, "2024-01-06").DeathCount)

	rr = ts.push(id, "2024-01-06")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, response.Progress{Success: true, Height: 1, Streak: 1}, decodeProgress(t, rr))

	// The fall is in the history exactly once
	rr = ts.request(http.MethodGet, "/api/player/deaths", nil, withPlayer(id))
	require.Equal(t, http.StatusOK, rr.Code)
	var deaths response.Deaths
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &deaths))
	require.Len(t, deaths.Deaths, 1)
	assert.Equal(t, 3, deaths.Deaths[0].HeightLost)
	assert.Equal(t, 2, deaths.Deaths[0].DaysMissed)
	assert.Equal(t, "2024-01-03", deaths.Deaths[0].LastPlayedDate)
}

func TestAcknowledgeErrors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/push/acknowledge-rollback", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeMissingPlayerID, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/push/acknowledge-rollback", nil, withPlayer("ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeInvalidPlayer, decodeError(t, rr).Code)

	id := ts.register(t)
	rr = ts.request(http.MethodPost, "/api/push/acknowledge-rollback", `{"localDate":`, withPlayer(id))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidBody, decodeError(t, rr).Code)
}

func TestPushRateLimit(t *testing.T) {
	ts := newTestServer(t)
	id := ts.register(t)

	require.Equal(t, http.StatusOK, ts.push(id, "2024-01-01").Code)
	for range 9 {
		assert.Equal(t, http.StatusConflict, ts.push(id, "2024-01-01").Code)
	}

	rr := ts.push(id, "2024-01-02")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, decodeError(t, rr).Code)

	// Other players have their own budget
	other := ts.register(t)
	assert.Equal(t, http.StatusOK, ts.push(other, "2024-01-01").Code)

	// The rejected attempt was not applied
	assert.Equal(t, 1, ts.state(t, id, "2024-01-02").Height)

	ts.app.MockClock.Advance(61 * time.Second)
	rr = ts.push(id, "2024-01-02")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2, decodeProgress(t, rr).Height)
}

func TestRegisterThrottle(t *testing.T) {
	ts := newTestServer(t)

	for range 5 {
		rr := ts.request(http.MethodPost, "/api/player/register", nil, fromAddr("10.9.9.9:1000"))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := ts.request(http.MethodPost, "/api/player/register", nil, fromAddr("10.9.9.9:1001"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/player/register", nil, fromAddr("10.9.9.10:1000"))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestDeathsRequiresPlayer(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/player/deaths", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	id := ts.register(t)
	rr = ts.request(http.MethodGet, "/api/player/deaths", nil, withPlayer(id))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deaths":[]}`, rr.Body.String())
}

func TestLeaderboardAndSurvivorship(t *testing.T) {
	ts := newTestServer(t)
	a := ts.register(t)
	b := ts.register(t)
	c := ts.register(t)

	require.Equal(t, http.StatusOK, ts.push(a, "2024-01-01").Code)
	require.Equal(t, http.StatusOK, ts.push(b, "2024-01-01").Code)
	require.Equal(t, http.StatusOK, ts.push(b, "2024-01-02").Code)
	_ = c

	rr := ts.request(http.MethodGet, "/api/leaderboard?limit=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var board response.Leaderboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &board))
	require.Len(t, board.Players, 2)
	assert.Equal(t, b, board.Players[0].ID)
	assert.Equal(t, 2, board.Players[0].Height)
	assert.Equal(t, a, board.Players[1].ID)

	for _, bad := range []string{"0", "-1", "101", "ten"} {
		rr = ts.request(http.MethodGet, "/api/leaderboard?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "limit=%s", bad)
		assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
	}

	rr = ts.request(http.MethodGet, "/api/survivorship", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var sv response.Survivorship
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sv))
	assert.Equal(t, 3, sv.TotalPlayers)
	assert.Equal(t, 2, sv.AlivePlayers)
	assert.Equal(t, 1, sv.DeadPlayers)
	assert.Equal(t, 2, sv.HighestHeight)
	assert.InDelta(t, 1.0, sv.AverageHeight, 0.001)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.register(t)
	require.Equal(t, http.StatusOK, ts.push(id, "2024-01-01").Code)

	rr := ts.request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "boulder_player_registrations_total 1")
	assert.Contains(t, body, `boulder_progression_push_attempts_total{outcome="pushed"} 1`)
	assert.True(t, strings.Contains(body, `path="/api/push"`), "requests are labelled by route template")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeError(t, rr).Code)

	rr = ts.request(http.MethodGet, "/api/push", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "method_not_allowed", decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/leaderboard", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = ts.request(http.MethodPost, "/metrics", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
