package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcoot/boulder/internal/api/middleware"
	"github.com/mcoot/boulder/internal/api/request"
	"github.com/mcoot/boulder/internal/api/response"
	"github.com/mcoot/boulder/internal/services/progression"
)

// maxBodyBytes bounds request bodies; the largest legal body is a date
const maxBodyBytes = 4 << 10

// PushHandler handles the daily push and rollback acknowledgement
type PushHandler struct {
	engine *progression.Engine
}

// NewPushHandler creates a new push handler
func NewPushHandler(engine *progression.Engine) *PushHandler {
	return &PushHandler{engine: engine}
}

// Push handles POST /api/push
func (h *PushHandler) Push(w http.ResponseWriter, r *http.Request) {
	id := middleware.MustGetPlayerID(r.Context())

	var req request.PushRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		WriteError(w, err)
		return
	}

	p, err := h.engine.Push(r.Context(), id, req.LocalDate)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ProgressFromModel(p))
}

// AcknowledgeRollback handles POST /api/push/acknowledge-rollback. The body
// is optional.
func (h *PushHandler) AcknowledgeRollback(w http.ResponseWriter, r *http.Request) {
	id := middleware.MustGetPlayerID(r.Context())

	var req request.AcknowledgeRollbackRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		WriteError(w, err)
		return
	}

	p, err := h.engine.AcknowledgeRollback(r.Context(), id, req.LocalDate)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ProgressFromModel(p))
}

// decodeBody reads a JSON object into dst. An empty body is accepted only
// when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return NewInvalidBodyError("request body is required")
	}

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if optional {
			return nil
		}
		return NewInvalidBodyError("request body is required")
	default:
		return NewInvalidBodyError("invalid request body")
	}
}
