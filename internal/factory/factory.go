package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mcoot/boulder/internal/api"
	"github.com/mcoot/boulder/internal/dependencies/clock"
	"github.com/mcoot/boulder/internal/dependencies/ids"
	"github.com/mcoot/boulder/internal/metrics"
	"github.com/mcoot/boulder/internal/services/leaderboard"
	"github.com/mcoot/boulder/internal/services/player"
	"github.com/mcoot/boulder/internal/services/progression"
	"github.com/mcoot/boulder/internal/services/ratelimit"
	"github.com/mcoot/boulder/internal/storage"
	"github.com/mcoot/boulder/internal/storage/memory"
	redisstorage "github.com/mcoot/boulder/internal/storage/redis"
	"github.com/mcoot/boulder/internal/storage/sqldb"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// Rate limiter type constants
const (
	LimiterTypeMemory = "memory"
	LimiterTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock
	IDs   ids.Generator

	// Observability
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Services
	PlayerService    *player.Service
	Engine           *progression.Engine
	Leaderboard      *leaderboard.Reader
	PushLimiter      ratelimit.Limiter
	RegisterThrottle *ratelimit.Throttle

	// closers run in reverse order on Close
	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Metrics is the metrics registry (optional)
	// If nil, a fresh registry is created
	Metrics *metrics.Metrics
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required for redis storage or limiter)
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required for sqlite or postgres storage)
	SQLConfig *sqldb.Config
	// LimiterType selects where push attempts are counted
	// If empty, defaults to "memory"
	LimiterType string
	// PushLimit bounds push attempts per player; zero fields take defaults
	PushLimit ratelimit.Config
	// RegisterRPS and RegisterBurst bound registrations per client address
	RegisterRPS   float64
	RegisterBurst int
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}

	var closers []io.Closer
	fail := func(err error) (*App, error) {
		closeAll(closers)
		return nil, err
	}

	// Create storage based on type
	var store storage.Storage
	var redisClient *goredis.Client
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store = redisStore
		redisClient = redisStore.Client()
	case StorageTypeSQLite, StorageTypePostgres:
		if cfg.SQLConfig == nil {
			return nil, fmt.Errorf("SQLConfig required when StorageType is %s", storageType)
		}
		sqlCfg := *cfg.SQLConfig
		sqlCfg.Driver = storageType
		sqlStore, err := sqldb.Open(ctx, sqlCfg)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", storageType, err)
		}
		store = sqlStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q", storageType)
	}
	closers = append(closers, store)

	clk := clock.New()

	// Push limiter shares the storage connection when both use Redis
	var limiter ratelimit.Limiter
	switch cfg.LimiterType {
	case "", LimiterTypeMemory:
		limiter = ratelimit.NewMemory(cfg.PushLimit, clk)
	case LimiterTypeRedis:
		if redisClient == nil {
			if cfg.RedisConfig == nil {
				return fail(errors.New("RedisConfig required when LimiterType is redis"))
			}
			client, err := newRedisClient(ctx, *cfg.RedisConfig)
			if err != nil {
				return fail(fmt.Errorf("connect redis limiter: %w", err))
			}
			closers = append(closers, client)
			redisClient = client
		}
		limiter = ratelimit.NewRedis(redisClient, cfg.PushLimit, clk)
	default:
		return fail(fmt.Errorf("invalid LimiterType %q", cfg.LimiterType))
	}

	app := newWithDependencies(store, clk, ids.New(), limiter, cfg, m, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	gen ids.Generator,
	limiter ratelimit.Limiter,
	cfg Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *App {
	return &App{
		Storage:          store,
		Clock:            clk,
		IDs:              gen,
		Logger:           logger,
		Metrics:          m,
		PlayerService:    player.New(store, clk, gen, m, logger),
		Engine:           progression.New(store, clk, m, logger),
		Leaderboard:      leaderboard.New(store),
		PushLimiter:      limiter,
		RegisterThrottle: ratelimit.NewThrottle(cfg.RegisterRPS, cfg.RegisterBurst),
	}
}

// Router builds the HTTP API over the wired services
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:           a.Logger,
		Metrics:          a.Metrics,
		PlayerService:    a.PlayerService,
		Engine:           a.Engine,
		Leaderboard:      a.Leaderboard,
		PushLimiter:      a.PushLimiter,
		RegisterThrottle: a.RegisterThrottle,
	})
}

// Close releases storage and any extra connections opened by New
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newRedisClient(ctx context.Context, cfg redisstorage.Config) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
