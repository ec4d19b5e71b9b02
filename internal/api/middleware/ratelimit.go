package middleware

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/mcoot/boulder/internal/api/apierr"
	"github.com/mcoot/boulder/internal/metrics"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/services/ratelimit"
)

// LimitPlayer admits requests through limiter keyed by the caller's player
// id. Must run after RequirePlayer. A failing limiter lets the request
// through; the store still enforces one push per date.
func LimitPlayer(limiter ratelimit.Limiter, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := MustGetPlayerID(r.Context())

			allowed, err := limiter.Allow(r.Context(), string(id))
			if err != nil {
				logger.Error("rate limiter unavailable", slog.String("player_id", string(id)), slog.Any("error", err))
				allowed = true
			}
			if !allowed {
				m.RecordRateLimited("push")
				logger.Warn("push rate limited", slog.String("player_id", string(id)))
				apierr.WriteError(w, model.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ThrottleByAddr applies a token bucket per remote address
func ThrottleByAddr(throttle *ratelimit.Throttle, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := remoteHost(r)
			if !throttle.Allow(addr) {
				m.RecordRateLimited("register")
				logger.Warn("registration throttled", slog.String("remote_addr", addr))
				apierr.WriteError(w, model.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
