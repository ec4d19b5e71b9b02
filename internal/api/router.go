package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/boulder/internal/api/apierr"
	"github.com/mcoot/boulder/internal/api/handler"
	"github.com/mcoot/boulder/internal/api/middleware"
	"github.com/mcoot/boulder/internal/metrics"
	transport "github.com/mcoot/boulder/internal/middleware"
	"github.com/mcoot/boulder/internal/services/leaderboard"
	"github.com/mcoot/boulder/internal/services/player"
	"github.com/mcoot/boulder/internal/services/progression"
	"github.com/mcoot/boulder/internal/services/ratelimit"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
	PlayerService    *player.Service
	Engine           *progression.Engine
	Leaderboard      *leaderboard.Reader
	PushLimiter      ratelimit.Limiter
	RegisterThrottle *ratelimit.Throttle
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(apierr.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(apierr.MethodNotAllowed)

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.PlayerService, cfg.Engine)
	pushHandler := handler.NewPushHandler(cfg.Engine)
	leaderboardHandler := handler.NewLeaderboardHandler(cfg.Leaderboard)

	// Create middleware
	requirePlayer := middleware.RequirePlayer(cfg.PlayerService)
	limitPushes := middleware.LimitPlayer(cfg.PushLimiter, cfg.Metrics, cfg.Logger)
	throttleRegistration := middleware.ThrottleByAddr(cfg.RegisterThrottle, cfg.Metrics, cfg.Logger)

	r.Use(transport.Recovery(cfg.Logger, apierr.WritePanic))
	r.Use(transport.Logging(cfg.Logger, middleware.PlayerIDHeader))
	r.Use(cfg.Metrics.Middleware)

	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.HandleFunc("/health", handler.Health).Methods(http.MethodGet)

	// Player routes
	api.Handle("/player/register",
		throttleRegistration(http.HandlerFunc(playerHandler.Register)),
	).Methods(http.MethodPost)
	api.Handle("/player/deaths",
		requirePlayer(http.HandlerFunc(playerHandler.Deaths)),
	).Methods(http.MethodGet)
	api.Handle("/player",
		middleware.OptionalPlayer(http.HandlerFunc(playerHandler.State)),
	).Methods(http.MethodGet)

	// Push routes; only the push itself is rate limited
	api.Handle("/push",
		requirePlayer(limitPushes(http.HandlerFunc(pushHandler.Push))),
	).Methods(http.MethodPost)
	api.Handle("/push/acknowledge-rollback",
		requirePlayer(http.HandlerFunc(pushHandler.AcknowledgeRollback)),
	).Methods(http.MethodPost)

	// Aggregate views
	api.HandleFunc("/leaderboard", leaderboardHandler.Top).Methods(http.MethodGet)
	api.HandleFunc("/survivorship", leaderboardHandler.Survivorship).Methods(http.MethodGet)

	return r
}
