package storage

import (
	"context"

	"github.com/mcoot/boulder/internal/model"
)

// Storage defines the interface for data persistence.
//
// The player record is a mutable projection; pushes and deaths are
// append-only ledgers. Every Commit* method applies all of its writes
// atomically or none of them.
//
// Commit methods take the player as it should look after the mutation, with
// Version still set to the version that was read. If the stored version has
// moved on, model.ErrConcurrentUpdate is returned and nothing is written.
// On success player.Version is advanced in place.
type Storage interface {
	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)

	// Push ledger operations
	HasPush(ctx context.Context, id model.PlayerID, playDate string) (bool, error)
	ListPushes(ctx context.Context, id model.PlayerID) ([]*model.PushEvent, error)
	// CommitPush inserts the push and updates the player. A push that already
	// exists for (PlayerID, PlayDate) fails with model.ErrAlreadyPlayed.
	CommitPush(ctx context.Context, player *model.Player, push *model.PushEvent) error

	// Death ledger operations
	// RecordDeath inserts the death unless one already exists for its
	// (PlayerID, LastPlayedDate). It returns the stored event and whether it
	// was written by this call.
	RecordDeath(ctx context.Context, death *model.DeathEvent) (*model.DeathEvent, bool, error)
	GetDeath(ctx context.Context, id model.PlayerID, lastPlayedDate string) (*model.DeathEvent, error)
	ListDeaths(ctx context.Context, id model.PlayerID) ([]*model.DeathEvent, error)
	// CommitRollback records the death (reusing an existing one for the same
	// interval) and updates the player. It returns the stored death.
	CommitRollback(ctx context.Context, player *model.Player, death *model.DeathEvent) (*model.DeathEvent, error)

	// Aggregation reads
	ListPlayersByHeight(ctx context.Context, limit int) ([]*model.Player, error)
	Survivorship(ctx context.Context) (*model.Survivorship, error)

	Close() error
}
