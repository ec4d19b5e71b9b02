// Package leaderboard serves read-only aggregate views over all players.
package leaderboard

import (
	"context"
	"errors"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage"
)

const (
	// DefaultLimit is used when no limit is requested
	DefaultLimit = 10
	// MaxLimit caps a single leaderboard page
	MaxLimit = 100
)

// ErrInvalidLimit is returned for a limit outside 1..MaxLimit
var ErrInvalidLimit = errors.New("limit must be between 1 and 100")

// Survivorship is the population summary with derived figures filled in
type Survivorship struct {
	model.Survivorship
	DeadPlayers   int
	AverageHeight float64
}

// Reader answers leaderboard queries
type Reader struct {
	storage storage.Storage
}

// New creates a new Reader
func New(storage storage.Storage) *Reader {
	return &Reader{storage: storage}
}

// Top returns up to limit players ordered by height. Zero means DefaultLimit.
func (r *Reader) Top(ctx context.Context, limit int) ([]*model.Player, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}
	return r.storage.ListPlayersByHeight(ctx, limit)
}

// Survivorship summarises how many players are still climbing
func (r *Reader) Survivorship(ctx context.Context) (*Survivorship, error) {
	totals, err := r.storage.Survivorship(ctx)
	if err != nil {
		return nil, err
	}

	out := &Survivorship{
		Survivorship: *totals,
		DeadPlayers:  totals.TotalPlayers - totals.AlivePlayers,
	}
	if totals.TotalPlayers > 0 {
		out.AverageHeight = float64(totals.TotalHeight) / float64(totals.TotalPlayers)
	}
	return out, nil
}
