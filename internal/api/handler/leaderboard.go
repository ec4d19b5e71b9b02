package handler

import (
	"net/http"
	"strconv"

	"github.com/mcoot/boulder/internal/api/response"
	"github.com/mcoot/boulder/internal/services/leaderboard"
)

// LeaderboardHandler serves the aggregate read views
type LeaderboardHandler struct {
	reader *leaderboard.Reader
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(reader *leaderboard.Reader) *LeaderboardHandler {
	return &LeaderboardHandler{reader: reader}
}

// Top handles GET /api/leaderboard?limit=N
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, NewInvalidRequestError("limit must be an integer"))
			return
		}
		if n == 0 {
			WriteError(w, leaderboard.ErrInvalidLimit)
			return
		}
		limit = n
	}

	players, err := h.reader.Top(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromModel(players))
}

// Survivorship handles GET /api/survivorship
func (h *LeaderboardHandler) Survivorship(w http.ResponseWriter, r *http.Request) {
	sv, err := h.reader.Survivorship(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SurvivorshipFromModel(sv))
}

// Health handles GET /api/health
func Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
