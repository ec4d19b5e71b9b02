package handler

import (
	"net/http"

	"github.com/mcoot/boulder/internal/api/middleware"
	"github.com/mcoot/boulder/internal/api/response"
	"github.com/mcoot/boulder/internal/services/player"
	"github.com/mcoot/boulder/internal/services/progression"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	players *player.Service
	engine  *progression.Engine
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(players *player.Service, engine *progression.Engine) *PlayerHandler {
	return &PlayerHandler{
		players: players,
		engine:  engine,
	}
}

// Register handles POST /api/player/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, err := h.players.Register(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.Registered{ID: string(p.ID)})
}

// State handles GET /api/player?localDate=YYYY-MM-DD
func (h *PlayerHandler) State(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetPlayerID(r.Context())
	localDate := r.URL.Query().Get("localDate")

	view, err := h.engine.State(r.Context(), id, localDate)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerStateFromView(view))
}

// Deaths handles GET /api/player/deaths
func (h *PlayerHandler) Deaths(w http.ResponseWriter, r *http.Request) {
	id := middleware.MustGetPlayerID(r.Context())

	deaths, err := h.players.Deaths(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.DeathsFromModel(deaths))
}
