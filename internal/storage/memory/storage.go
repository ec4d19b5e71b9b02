package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// A single mutex makes every Commit* call atomic.
type Storage struct {
	mu sync.RWMutex

	players  map[model.PlayerID]*model.Player
	pushes   map[pushKey]*model.PushEvent
	deaths   map[deathKey]*model.DeathEvent
	deathSeq int64
}

type pushKey struct {
	playerID model.PlayerID
	playDate string
}

type deathKey struct {
	playerID       model.PlayerID
	lastPlayedDate string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players: make(map[model.PlayerID]*model.Player),
		pushes:  make(map[pushKey]*model.PushEvent),
		deaths:  make(map[deathKey]*model.DeathEvent),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[player.ID]; ok {
		return model.ErrPlayerExists
	}
	s.players[player.ID] = player.Clone()
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player.Clone(), nil
}

// Push ledger operations

func (s *Storage) HasPush(ctx context.Context, id model.PlayerID, playDate string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.pushes[pushKey{playerID: id, playDate: playDate}]
	return ok, nil
}

func (s *Storage) ListPushes(ctx context.Context, id model.PlayerID) ([]*model.PushEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pushes []*model.PushEvent
	for key, push := range s.pushes {
		if key.playerID == id {
			p := *push
			pushes = append(pushes, &p)
		}
	}
	sort.Slice(pushes, func(i, j int) bool {
		return pushes[i].PlayDate < pushes[j].PlayDate
	})
	return pushes, nil
}

func (s *Storage) CommitPush(ctx context.Context, player *model.Player, push *model.PushEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[player.ID]; !ok {
		return model.ErrPlayerNotFound
	}
	// A duplicate date wins over a version mismatch so double-submits
	// always report the same error
	key := pushKey{playerID: push.PlayerID, playDate: push.PlayDate}
	if _, ok := s.pushes[key]; ok {
		return model.ErrAlreadyPlayed
	}
	if err := s.checkVersion(player); err != nil {
		return err
	}

	p := *push
	s.pushes[key] = &p
	s.applyPlayer(player)
	return nil
}

// Death ledger operations

func (s *Storage) RecordDeath(ctx context.Context, death *model.DeathEvent) (*model.DeathEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[death.PlayerID]; !ok {
		return nil, false, model.ErrPlayerNotFound
	}
	stored, created := s.insertDeath(death)
	return stored, created, nil
}

func (s *Storage) GetDeath(ctx context.Context, id model.PlayerID, lastPlayedDate string) (*model.DeathEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	death, ok := s.deaths[deathKey{playerID: id, lastPlayedDate: lastPlayedDate}]
	if !ok {
		return nil, model.ErrDeathNotFound
	}
	d := *death
	return &d, nil
}

func (s *Storage) ListDeaths(ctx context.Context, id model.PlayerID) ([]*model.DeathEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var deaths []*model.DeathEvent
	for key, death := range s.deaths {
		if key.playerID == id {
			d := *death
			deaths = append(deaths, &d)
		}
	}
	sort.Slice(deaths, func(i, j int) bool {
		return deaths[i].ID < deaths[j].ID
	})
	return deaths, nil
}

func (s *Storage) CommitRollback(ctx context.Context, player *model.Player, death *model.DeathEvent) (*model.DeathEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(player); err != nil {
		return nil, err
	}

	stored, _ := s.insertDeath(death)
	s.applyPlayer(player)
	return stored, nil
}

// Aggregation reads

func (s *Storage) ListPlayersByHeight(ctx context.Context, limit int) ([]*model.Player, error) {
	players := s.snapshotPlayers()
	storage.SortByHeight(players)
	if limit > 0 && len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

func (s *Storage) Survivorship(ctx context.Context) (*model.Survivorship, error) {
	return storage.Summarize(s.snapshotPlayers()), nil
}

// Helpers; callers hold the lock where noted.

func (s *Storage) snapshotPlayers() []*model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*model.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p.Clone())
	}
	return players
}

// checkVersion requires s.mu held
func (s *Storage) checkVersion(player *model.Player) error {
	current, ok := s.players[player.ID]
	if !ok {
		return model.ErrPlayerNotFound
	}
	if current.Version != player.Version {
		return model.ErrConcurrentUpdate
	}
	return nil
}

// applyPlayer requires s.mu held
func (s *Storage) applyPlayer(player *model.Player) {
	player.Version++
	s.players[player.ID] = player.Clone()
}

// insertDeath requires s.mu held
func (s *Storage) insertDeath(death *model.DeathEvent) (*model.DeathEvent, bool) {
	key := deathKey{playerID: death.PlayerID, lastPlayedDate: death.LastPlayedDate}
	if existing, ok := s.deaths[key]; ok {
		d := *existing
		return &d, false
	}

	s.deathSeq++
	d := *death
	d.ID = s.deathSeq
	s.deaths[key] = &d

	out := d
	return &out, true
}
