// Package apierr maps domain errors onto HTTP status codes and the JSON
// error body.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/calendar"
	"github.com/mcoot/boulder/internal/services/leaderboard"
	"github.com/mcoot/boulder/internal/services/progression"
)

// APIError represents an API error response. The loss fields are only set
// for rollback_required.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HeightLost *int   `json:"heightLost,omitempty"`
	StreakLost *int   `json:"streakLost,omitempty"`
	DaysMissed *int   `json:"daysMissed,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error codes
const (
	CodeMissingPlayerID  = "missing_player_id"
	CodeInvalidPlayer    = "invalid_player"
	CodeInvalidBody      = "invalid_body"
	CodeInvalidDate      = "invalid_date"
	CodeInvalidRequest   = "invalid_request"
	CodeAlreadyPlayed    = "already_played_today"
	CodeRollbackRequired = "rollback_required"
	CodeConcurrentUpdate = "concurrent_update"
	CodeRateLimited      = "rate_limited"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternalError    = "internal_error"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// WritePanic answers a recovered panic with internal_error
func WritePanic(w http.ResponseWriter, _ *http.Request, _ any) {
	WriteError(w, NewInternalError())
}

// NotFound answers requests that match no route
func NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, &httpError{http.StatusNotFound, APIError{Code: CodeNotFound, Message: "Route not found"}})
}

// MethodNotAllowed answers requests whose path exists under another method
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, &httpError{http.StatusMethodNotAllowed, APIError{Code: CodeMethodNotAllowed, Message: "Method not allowed"}})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var rb *progression.RollbackError
	if errors.As(err, &rb) {
		return &httpError{http.StatusConflict, APIError{
			Code:       CodeRollbackRequired,
			Message:    "A day was missed; acknowledge the rollback before pushing",
			HeightLost: intPtr(rb.HeightLost),
			StreakLost: intPtr(rb.StreakLost),
			DaysMissed: intPtr(rb.DaysMissed),
		}}
	}

	switch {
	case errors.Is(err, calendar.ErrInvalidDate):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidDate, Message: "localDate must be a real YYYY-MM-DD date"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeInvalidPlayer, Message: "Player not found"}}
	case errors.Is(err, model.ErrAlreadyPlayed):
		return &httpError{http.StatusConflict, APIError{Code: CodeAlreadyPlayed, Message: "Already pushed for this date"}}
	case errors.Is(err, model.ErrConcurrentUpdate):
		return &httpError{http.StatusConflict, APIError{Code: CodeConcurrentUpdate, Message: "Player was modified by another request"}}
	case errors.Is(err, model.ErrRateLimited):
		return &httpError{http.StatusTooManyRequests, APIError{Code: CodeRateLimited, Message: "Too many attempts, slow down"}}
	case errors.Is(err, leaderboard.ErrInvalidLimit):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: err.Error()}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

func intPtr(v int) *int {
	return &v
}

// NewMissingPlayerIDError is returned when the identity header is absent
func NewMissingPlayerIDError() error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeMissingPlayerID, Message: "X-Player-Id header is required"}}
}

// NewInvalidBodyError creates an invalid body error
func NewInvalidBodyError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidBody, Message: message}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
