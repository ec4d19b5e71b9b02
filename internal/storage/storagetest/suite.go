// Package storagetest holds the behaviour every storage backend must share.
// Backends run it from their own tests with a constructor for a fresh,
// empty store.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage"
)

// Suite exercises a storage.Storage implementation
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store; called before every test
	NewStorage func(t *testing.T) storage.Storage

	storage storage.Storage
	ctx     context.Context
	now     time.Time
}

// Run runs the conformance suite against the given constructor
func Run(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	suite.Run(t, &Suite{NewStorage: newStorage})
}

func (s *Suite) SetupTest() {
	s.storage = s.NewStorage(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *Suite) createPlayer(id model.PlayerID) *model.Player {
	player := &model.Player{
		ID:        id,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, player))
	return player
}

// push advances the player by one on the given date and commits it
func (s *Suite) push(player *model.Player, date string) {
	player.Height++
	player.Streak++
	player.TotalPushes++
	player.LastPlayedDate = date
	if player.Height > player.MaxHeight {
		player.MaxHeight = player.Height
	}
	push := &model.PushEvent{
		PlayerID:     player.ID,
		PlayDate:     date,
		HeightAfter:  player.Height,
		StreakAtTime: player.Streak,
		CreatedAt:    s.now,
	}
	s.Require().NoError(s.storage.CommitPush(s.ctx, player, push))
}

func (s *Suite) deathFor(player *model.Player, daysMissed int) *model.DeathEvent {
	return &model.DeathEvent{
		PlayerID:       player.ID,
		HeightLost:     player.Height,
		StreakLost:     player.Streak,
		DaysMissed:     daysMissed,
		LastPlayedDate: player.LastPlayedDate,
		CreatedAt:      s.now,
	}
}

// Player tests

func (s *Suite) TestCreateAndGetPlayer() {
	s.createPlayer("player-1")

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.ID)
	s.Equal(0, retrieved.Height)
	s.Equal(0, retrieved.Streak)
	s.Empty(retrieved.LastPlayedDate)
	s.Equal(int64(0), retrieved.Version)
	s.WithinDuration(s.now, retrieved.CreatedAt, time.Second)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestCreatePlayerRejectsDuplicateID() {
	s.createPlayer("player-1")

	err := s.storage.CreatePlayer(s.ctx, &model.Player{ID: "player-1", CreatedAt: s.now, UpdatedAt: s.now})
	s.ErrorIs(err, model.ErrPlayerExists)
}

func (s *Suite) TestReturnedPlayerIsACopy() {
	s.createPlayer("player-1")

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	retrieved.Height = 99

	again, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(0, again.Height)
}

// Push ledger tests

func (s *Suite) TestCommitPushUpdatesPlayerAndLedger() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")

	s.Equal(int64(1), player.Version, "version should advance in place")

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(1, retrieved.Height)
	s.Equal(1, retrieved.Streak)
	s.Equal(1, retrieved.TotalPushes)
	s.Equal(1, retrieved.MaxHeight)
	s.Equal("2024-01-01", retrieved.LastPlayedDate)
	s.Equal(int64(1), retrieved.Version)

	has, err := s.storage.HasPush(s.ctx, "player-1", "2024-01-01")
	s.Require().NoError(err)
	s.True(has)

	has, err = s.storage.HasPush(s.ctx, "player-1", "2024-01-02")
	s.Require().NoError(err)
	s.False(has)
}

func (s *Suite) TestCommitPushRejectsDuplicateDate() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")

	dup := player.Clone()
	dup.Height++
	err := s.storage.CommitPush(s.ctx, dup, &model.PushEvent{
		PlayerID:    player.ID,
		PlayDate:    "2024-01-01",
		HeightAfter: dup.Height,
		CreatedAt:   s.now,
	})
	s.ErrorIs(err, model.ErrAlreadyPlayed)

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(1, retrieved.Height, "player must not change when the push is rejected")
	s.Equal(int64(1), retrieved.Version)
}

func (s *Suite) TestCommitPushRejectsStaleVersion() {
	player := s.createPlayer("player-1")
	stale := player.Clone()
	s.push(player, "2024-01-01")

	stale.Height = 1
	stale.LastPlayedDate = "2024-01-02"
	err := s.storage.CommitPush(s.ctx, stale, &model.PushEvent{
		PlayerID:  stale.ID,
		PlayDate:  "2024-01-02",
		CreatedAt: s.now,
	})
	s.ErrorIs(err, model.ErrConcurrentUpdate)

	has, err := s.storage.HasPush(s.ctx, "player-1", "2024-01-02")
	s.Require().NoError(err)
	s.False(has, "push must not be recorded when the player update fails")

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("2024-01-01", retrieved.LastPlayedDate)
}

func (s *Suite) TestCommitPushDuplicateWinsOverStaleVersion() {
	player := s.createPlayer("player-1")
	stale := player.Clone()
	s.push(player, "2024-01-01")

	stale.Height = 1
	err := s.storage.CommitPush(s.ctx, stale, &model.PushEvent{
		PlayerID:  stale.ID,
		PlayDate:  "2024-01-01",
		CreatedAt: s.now,
	})
	s.ErrorIs(err, model.ErrAlreadyPlayed)
}

func (s *Suite) TestConcurrentDuplicatePushesReportAlreadyPlayed() {
	player := s.createPlayer("player-1")

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := player.Clone()
			next.Height, next.Streak, next.TotalPushes, next.MaxHeight = 1, 1, 1, 1
			next.LastPlayedDate = "2024-01-01"
			errs[i] = s.storage.CommitPush(s.ctx, next, &model.PushEvent{
				PlayerID:     player.ID,
				PlayDate:     "2024-01-01",
				HeightAfter:  1,
				StreakAtTime: 1,
				CreatedAt:    s.now,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, model.ErrAlreadyPlayed)
	}
	s.Equal(1, succeeded)

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(1, retrieved.Height)
	s.Equal(int64(1), retrieved.Version)
}

func (s *Suite) TestCommitPushUnknownPlayer() {
	err := s.storage.CommitPush(s.ctx, &model.Player{ID: "ghost", Height: 1}, &model.PushEvent{
		PlayerID:  "ghost",
		PlayDate:  "2024-01-01",
		CreatedAt: s.now,
	})
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListPushesInDateOrder() {
	player := s.createPlayer("player-1")
	other := s.createPlayer("player-2")
	s.push(player, "2024-01-01")
	s.push(other, "2024-01-01")
	s.push(player, "2024-01-02")
	s.push(player, "2024-01-03")

	pushes, err := s.storage.ListPushes(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Require().Len(pushes, 3)
	s.Equal("2024-01-01", pushes[0].PlayDate)
	s.Equal("2024-01-03", pushes[2].PlayDate)
	s.Equal(3, pushes[2].HeightAfter)
	s.Equal(3, pushes[2].StreakAtTime)
}

func (s *Suite) TestListPushesEmpty() {
	s.createPlayer("player-1")

	pushes, err := s.storage.ListPushes(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Empty(pushes)
}

// Death ledger tests

func (s *Suite) TestRecordDeathIsIdempotentPerInterval() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")

	first, created, err := s.storage.RecordDeath(s.ctx, s.deathFor(player, 2))
	s.Require().NoError(err)
	s.True(created)
	s.NotZero(first.ID)
	s.Equal(1, first.HeightLost)
	s.Equal(2, first.DaysMissed)

	second, created, err := s.storage.RecordDeath(s.ctx, s.deathFor(player, 5))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	s.Equal(2, second.DaysMissed, "the first recorded death wins")

	deaths, err := s.storage.ListDeaths(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Len(deaths, 1)
}

func (s *Suite) TestRecordDeathDistinctIntervals() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")

	first, _, err := s.storage.RecordDeath(s.ctx, s.deathFor(player, 1))
	s.Require().NoError(err)

	player.Height = 0
	player.Streak = 0
	s.push(player, "2024-01-05")

	second, created, err := s.storage.RecordDeath(s.ctx, s.deathFor(player, 3))
	s.Require().NoError(err)
	s.True(created)
	s.Greater(second.ID, first.ID)

	deaths, err := s.storage.ListDeaths(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Require().Len(deaths, 2)
	s.Equal(first.ID, deaths[0].ID)
	s.Equal("2024-01-05", deaths[1].LastPlayedDate)
}

func (s *Suite) TestRecordDeathUnknownPlayer() {
	_, _, err := s.storage.RecordDeath(s.ctx, &model.DeathEvent{
		PlayerID:       "ghost",
		DaysMissed:     1,
		LastPlayedDate: "2024-01-01",
		CreatedAt:      s.now,
	})
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetDeath() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")
	recorded, _, err := s.storage.RecordDeath(s.ctx, s.deathFor(player, 4))
	s.Require().NoError(err)

	death, err := s.storage.GetDeath(s.ctx, "player-1", "2024-01-01")
	s.Require().NoError(err)
	s.Equal(recorded.ID, death.ID)
	s.Equal(4, death.DaysMissed)

	_, err = s.storage.GetDeath(s.ctx, "player-1", "2024-02-01")
	s.ErrorIs(err, model.ErrDeathNotFound)
}

func (s *Suite) TestCommitRollbackReusesRecordedDeath() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")
	s.push(player, "2024-01-02")
	recorded, _, err := s.storage.RecordDeath(s.ctx, s.deathFor(player, 3))
	s.Require().NoError(err)

	death := s.deathFor(player, 1)
	player.Height = 0
	player.Streak = 0
	player.DeathCount++
	stored, err := s.storage.CommitRollback(s.ctx, player, death)
	s.Require().NoError(err)
	s.Equal(recorded.ID, stored.ID)
	s.Equal(3, stored.DaysMissed)

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(0, retrieved.Height)
	s.Equal(0, retrieved.Streak)
	s.Equal(1, retrieved.DeathCount)
	s.Equal(2, retrieved.MaxHeight)
	s.Equal("2024-01-02", retrieved.LastPlayedDate)

	deaths, err := s.storage.ListDeaths(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Len(deaths, 1)
}

func (s *Suite) TestCommitRollbackInsertsDeathWhenMissing() {
	player := s.createPlayer("player-1")
	s.push(player, "2024-01-01")

	death := s.deathFor(player, 1)
	player.Height = 0
	player.Streak = 0
	player.DeathCount++
	stored, err := s.storage.CommitRollback(s.ctx, player, death)
	s.Require().NoError(err)
	s.NotZero(stored.ID)
	s.Equal(1, stored.HeightLost)

	deaths, err := s.storage.ListDeaths(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Len(deaths, 1)
}

func (s *Suite) TestCommitRollbackRejectsStaleVersion() {
	player := s.createPlayer("player-1")
	stale := player.Clone()
	s.push(player, "2024-01-01")

	stale.Height = 0
	_, err := s.storage.CommitRollback(s.ctx, stale, &model.DeathEvent{
		PlayerID:       stale.ID,
		HeightLost:     1,
		DaysMissed:     1,
		LastPlayedDate: "2024-01-01",
		CreatedAt:      s.now,
	})
	s.ErrorIs(err, model.ErrConcurrentUpdate)

	deaths, err := s.storage.ListDeaths(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Empty(deaths, "death must not be recorded when the reset fails")

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(1, retrieved.Height)
}

// Aggregation tests

func (s *Suite) TestListPlayersByHeight() {
	low := s.createPlayer("low")
	high := s.createPlayer("high")
	s.createPlayer("zero")
	s.push(low, "2024-01-01")
	s.push(high, "2024-01-01")
	s.push(high, "2024-01-02")

	players, err := s.storage.ListPlayersByHeight(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal(model.PlayerID("high"), players[0].ID)
	s.Equal(model.PlayerID("low"), players[1].ID)
	s.Equal(model.PlayerID("zero"), players[2].ID)

	players, err = s.storage.ListPlayersByHeight(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(players, 2)
}

func (s *Suite) TestSurvivorship() {
	alive := s.createPlayer("alive")
	dead := s.createPlayer("dead")
	s.push(alive, "2024-01-01")
	s.push(alive, "2024-01-02")
	s.push(dead, "2024-01-01")

	death := s.deathFor(dead, 1)
	dead.Height = 0
	dead.Streak = 0
	dead.DeathCount++
	_, err := s.storage.CommitRollback(s.ctx, dead, death)
	s.Require().NoError(err)

	stats, err := s.storage.Survivorship(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalPlayers)
	s.Equal(1, stats.AlivePlayers)
	s.Equal(1, stats.TotalDeaths)
	s.Equal(2, stats.TotalHeight)
	s.Equal(2, stats.HighestHeight)
	s.Equal(2, stats.LongestStreak)
}

func (s *Suite) TestSurvivorshipEmpty() {
	stats, err := s.storage.Survivorship(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.TotalPlayers)
}
