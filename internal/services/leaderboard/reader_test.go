package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage/memory"
)

type ReaderSuite struct {
	suite.Suite
	storage *memory.Storage
	reader  *Reader
	ctx     context.Context
}

func TestReaderSuite(t *testing.T) {
	suite.Run(t, new(ReaderSuite))
}

func (s *ReaderSuite) SetupTest() {
	s.storage = memory.New()
	s.reader = New(s.storage)
	s.ctx = context.Background()
}

func (s *ReaderSuite) seed(id string, height, maxHeight, streak, deaths int) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.storage.CreatePlayer(s.ctx, &model.Player{
		ID:         model.PlayerID(id),
		Height:     height,
		MaxHeight:  maxHeight,
		Streak:     streak,
		DeathCount: deaths,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func (s *ReaderSuite) TestTopOrdersByHeight() {
	s.seed("a", 1, 5, 1, 1)
	s.seed("b", 4, 4, 4, 0)
	s.seed("c", 1, 3, 1, 2)
	s.seed("d", 0, 9, 0, 3)

	players, err := s.reader.Top(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(players, 4)

	ids := []model.PlayerID{players[0].ID, players[1].ID, players[2].ID, players[3].ID}
	s.Equal([]model.PlayerID{"b", "a", "c", "d"}, ids)
}

func (s *ReaderSuite) TestTopRespectsLimit() {
	for _, id := range []string{"a", "b", "c"} {
		s.seed(id, 1, 1, 1, 0)
	}

	players, err := s.reader.Top(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(players, 2)
}

func (s *ReaderSuite) TestTopRejectsBadLimit() {
	_, err := s.reader.Top(s.ctx, -1)
	s.ErrorIs(err, ErrInvalidLimit)

	_, err = s.reader.Top(s.ctx, MaxLimit+1)
	s.ErrorIs(err, ErrInvalidLimit)
}

func (s *ReaderSuite) TestSurvivorship() {
	s.seed("a", 2, 5, 2, 1)
	s.seed("b", 4, 4, 4, 0)
	s.seed("c", 0, 3, 0, 2)

	sv, err := s.reader.Survivorship(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, sv.TotalPlayers)
	s.Equal(2, sv.AlivePlayers)
	s.Equal(1, sv.DeadPlayers)
	s.Equal(3, sv.TotalDeaths)
	s.Equal(5, sv.HighestHeight)
	s.Equal(4, sv.LongestStreak)
	s.InDelta(2.0, sv.AverageHeight, 0.0001)
}

func (s *ReaderSuite) TestSurvivorshipEmpty() {
	sv, err := s.reader.Survivorship(s.ctx)
	s.Require().NoError(err)
	s.Zero(sv.TotalPlayers)
	s.Zero(sv.AverageHeight)
}
