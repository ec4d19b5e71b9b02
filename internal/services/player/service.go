// Package player handles registration of new players.
package player

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/boulder/internal/dependencies/clock"
	"github.com/mcoot/boulder/internal/dependencies/ids"
	"github.com/mcoot/boulder/internal/metrics"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage"
)

// maxIDAttempts bounds retries when a generated id is already taken
const maxIDAttempts = 3

// ErrIDExhausted is returned when every generated id collided
var ErrIDExhausted = errors.New("could not allocate a unique player id")

// Service creates and looks up players
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	ids     ids.Generator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new player Service
func New(
	storage storage.Storage,
	clock clock.Clock,
	ids ids.Generator,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		ids:     ids,
		metrics: metrics,
		logger:  logger,
	}
}

// Register creates a player with zeroed progress
func (s *Service) Register(ctx context.Context) (*model.Player, error) {
	now := s.clock.Now()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		player := &model.Player{
			ID:        model.PlayerID(s.ids.NewID()),
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.storage.CreatePlayer(ctx, player)
		if errors.Is(err, model.ErrPlayerExists) {
			s.logger.Warn("generated player id already taken", "player_id", player.ID)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.RecordRegistration()
		s.logger.Info("player registered", "player_id", player.ID)
		return player, nil
	}

	return nil, ErrIDExhausted
}

// Get returns the player with the given id
func (s *Service) Get(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.storage.GetPlayer(ctx, id)
}

// Deaths returns the player's death history, oldest first
func (s *Service) Deaths(ctx context.Context, id model.PlayerID) ([]*model.DeathEvent, error) {
	if _, err := s.storage.GetPlayer(ctx, id); err != nil {
		return nil, err
	}
	return s.storage.ListDeaths(ctx, id)
}
