package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/boulder/internal/api/apierr"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/player"
)

// PlayerIDHeader carries the caller's identity. Possession of an id is
// sufficient authorization.
const PlayerIDHeader = "X-Player-Id"

type contextKey string

const playerIDContextKey contextKey = "player_id"

// RequirePlayer rejects requests without a known player id and puts the id
// in the request context. Handlers load the player themselves.
func RequirePlayer(players *player.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := extractPlayerID(r)
			if id == "" {
				apierr.WriteError(w, apierr.NewMissingPlayerIDError())
				return
			}

			if _, err := players.Get(r.Context(), id); err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), playerIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalPlayer records the player id if the header is present without
// looking the player up
func OptionalPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := extractPlayerID(r); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), playerIDContextKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

func extractPlayerID(r *http.Request) model.PlayerID {
	return model.PlayerID(strings.TrimSpace(r.Header.Get(PlayerIDHeader)))
}

// GetPlayerID returns the caller's player id, or "" if none was supplied
func GetPlayerID(ctx context.Context) model.PlayerID {
	id, _ := ctx.Value(playerIDContextKey).(model.PlayerID)
	return id
}

// MustGetPlayerID returns the caller's player id or panics
func MustGetPlayerID(ctx context.Context) model.PlayerID {
	id := GetPlayerID(ctx)
	if id == "" {
		panic("no player id in context - player middleware not applied?")
	}
	return id
}
