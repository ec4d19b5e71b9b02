package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Multi-key mutations run under WATCH/MULTI/EXEC; an aborted EXEC means
// another request touched the same player and surfaces as
// model.ErrConcurrentUpdate.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Client exposes the underlying client so other components (the shared rate
// limiter) can reuse the connection pool
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	key := playerKey(player.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrPlayerExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0) // Players are never deleted
			pipe.SAdd(ctx, playersIndexKey(), string(player.ID))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrPlayerExists
	}
	return err
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return getPlayer(ctx, s.client, id)
}

// Push ledger operations

func (s *Storage) HasPush(ctx context.Context, id model.PlayerID, playDate string) (bool, error) {
	return s.client.HExists(ctx, pushesKey(id), playDate).Result()
}

func (s *Storage) ListPushes(ctx context.Context, id model.PlayerID) ([]*model.PushEvent, error) {
	values, err := s.client.HVals(ctx, pushesKey(id)).Result()
	if err != nil {
		return nil, err
	}

	pushes := make([]*model.PushEvent, 0, len(values))
	for _, val := range values {
		var push model.PushEvent
		if err := json.Unmarshal([]byte(val), &push); err != nil {
			return nil, fmt.Errorf("decode push: %w", err)
		}
		pushes = append(pushes, &push)
	}
	sort.Slice(pushes, func(i, j int) bool {
		return pushes[i].PlayDate < pushes[j].PlayDate
	})
	return pushes, nil
}

func (s *Storage) CommitPush(ctx context.Context, player *model.Player, push *model.PushEvent) error {
	pushData, err := json.Marshal(push)
	if err != nil {
		return err
	}

	next := player.Clone()
	next.Version++
	playerData, err := json.Marshal(next)
	if err != nil {
		return err
	}

	pKey := playerKey(player.ID)
	hKey := pushesKey(player.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getPlayer(ctx, tx, player.ID)
		if err != nil {
			return err
		}

		// A duplicate date wins over a version mismatch so double-submits
		// always report the same error
		exists, err := tx.HExists(ctx, hKey, push.PlayDate).Result()
		if err != nil {
			return err
		}
		if exists {
			return model.ErrAlreadyPlayed
		}
		if current.Version != player.Version {
			return model.ErrConcurrentUpdate
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hKey, push.PlayDate, pushData)
			pipe.Set(ctx, pKey, playerData, 0)
			return nil
		})
		return err
	}, pKey, hKey)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return s.abortedPushError(ctx, hKey, push.PlayDate)
		}
		return err
	}

	player.Version = next.Version
	return nil
}

// abortedPushError reports a push whose EXEC lost a race. A concurrent write
// of the same date is a duplicate rather than a version conflict.
func (s *Storage) abortedPushError(ctx context.Context, hKey, playDate string) error {
	exists, err := s.client.HExists(ctx, hKey, playDate).Result()
	if err != nil {
		return err
	}
	if exists {
		return model.ErrAlreadyPlayed
	}
	return model.ErrConcurrentUpdate
}

// Death ledger operations

func (s *Storage) RecordDeath(ctx context.Context, death *model.DeathEvent) (*model.DeathEvent, bool, error) {
	pKey := playerKey(death.PlayerID)
	dKey := deathsKey(death.PlayerID)

	var stored *model.DeathEvent
	var created bool
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, pKey).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return model.ErrPlayerNotFound
		}

		existing, err := getDeath(ctx, tx, death.PlayerID, death.LastPlayedDate)
		if err == nil {
			stored, created = existing, false
			return nil
		}
		if !errors.Is(err, model.ErrDeathNotFound) {
			return err
		}

		fresh, data, err := s.newDeath(ctx, death)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, dKey, death.LastPlayedDate, data)
			return nil
		})
		if err != nil {
			return err
		}
		stored, created = fresh, true
		return nil
	}, pKey, dKey)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, false, model.ErrConcurrentUpdate
		}
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Storage) GetDeath(ctx context.Context, id model.PlayerID, lastPlayedDate string) (*model.DeathEvent, error) {
	return getDeath(ctx, s.client, id, lastPlayedDate)
}

func (s *Storage) ListDeaths(ctx context.Context, id model.PlayerID) ([]*model.DeathEvent, error) {
	values, err := s.client.HVals(ctx, deathsKey(id)).Result()
	if err != nil {
		return nil, err
	}

	deaths := make([]*model.DeathEvent, 0, len(values))
	for _, val := range values {
		var death model.DeathEvent
		if err := json.Unmarshal([]byte(val), &death); err != nil {
			return nil, fmt.Errorf("decode death: %w", err)
		}
		deaths = append(deaths, &death)
	}
	sort.Slice(deaths, func(i, j int) bool {
		return deaths[i].ID < deaths[j].ID
	})
	return deaths, nil
}

func (s *Storage) CommitRollback(ctx context.Context, player *model.Player, death *model.DeathEvent) (*model.DeathEvent, error) {
	next := player.Clone()
	next.Version++
	playerData, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}

	pKey := playerKey(player.ID)
	dKey := deathsKey(player.ID)

	var stored *model.DeathEvent
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getPlayer(ctx, tx, player.ID)
		if err != nil {
			return err
		}
		if current.Version != player.Version {
			return model.ErrConcurrentUpdate
		}

		var deathData []byte
		existing, err := getDeath(ctx, tx, death.PlayerID, death.LastPlayedDate)
		switch {
		case err == nil:
			stored = existing
		case errors.Is(err, model.ErrDeathNotFound):
			stored, deathData, err = s.newDeath(ctx, death)
			if err != nil {
				return err
			}
		default:
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if deathData != nil {
				pipe.HSet(ctx, dKey, death.LastPlayedDate, deathData)
			}
			pipe.Set(ctx, pKey, playerData, 0)
			return nil
		})
		return err
	}, pKey, dKey)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, model.ErrConcurrentUpdate
		}
		return nil, err
	}

	player.Version = next.Version
	return stored, nil
}

// Aggregation reads

func (s *Storage) ListPlayersByHeight(ctx context.Context, limit int) ([]*model.Player, error) {
	players, err := s.allPlayers(ctx)
	if err != nil {
		return nil, err
	}

	storage.SortByHeight(players)
	if limit > 0 && len(players) > limit {
		players = players[:limit]
	}
	return players, nil
}

func (s *Storage) Survivorship(ctx context.Context) (*model.Survivorship, error) {
	players, err := s.allPlayers(ctx)
	if err != nil {
		return nil, err
	}
	return storage.Summarize(players), nil
}

// allPlayers loads every indexed player with a single MGET
func (s *Storage) allPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, playersIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(model.PlayerID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Index entry without a record
		}
		var player model.Player
		if err := json.Unmarshal([]byte(str), &player); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
		players = append(players, &player)
	}
	return players, nil
}

// newDeath assigns the next ID and encodes the event
func (s *Storage) newDeath(ctx context.Context, death *model.DeathEvent) (*model.DeathEvent, []byte, error) {
	id, err := s.client.Incr(ctx, deathSeqKey()).Result()
	if err != nil {
		return nil, nil, err
	}

	d := *death
	d.ID = id
	data, err := json.Marshal(&d)
	if err != nil {
		return nil, nil, err
	}
	return &d, data, nil
}

func getPlayer(ctx context.Context, c redis.Cmdable, id model.PlayerID) (*model.Player, error) {
	data, err := c.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func getDeath(ctx context.Context, c redis.Cmdable, id model.PlayerID, lastPlayedDate string) (*model.DeathEvent, error) {
	data, err := c.HGet(ctx, deathsKey(id), lastPlayedDate).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrDeathNotFound
		}
		return nil, err
	}

	var death model.DeathEvent
	if err := json.Unmarshal(data, &death); err != nil {
		return nil, err
	}
	return &death, nil
}
