package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/boulder/internal/dependencies/mocks"
	"github.com/mcoot/boulder/internal/model"
	"github.com/mcoot/boulder/internal/storage/memory"
	"github.com/mcoot/boulder/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	ids     *mocks.MockIDs
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ids = mocks.NewMockIDs()
	s.service = New(s.storage, s.clock, s.ids, nil, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestRegisterCreatesZeroedPlayer() {
	s.ids.Queue("abc")

	player, err := s.service.Register(s.ctx)
	s.Require().NoError(err)

	s.Equal(model.PlayerID("abc"), player.ID)
	s.Zero(player.Height)
	s.Zero(player.Streak)
	s.Zero(player.MaxHeight)
	s.Zero(player.DeathCount)
	s.False(player.HasPlayed())
	s.Equal(s.clock.Now(), player.CreatedAt)

	stored, err := s.storage.GetPlayer(s.ctx, "abc")
	s.Require().NoError(err)
	s.Equal(player.ID, stored.ID)
}

func (s *ServiceSuite) TestRegisterRetriesTakenID() {
	s.ids.Queue("taken", "taken", "fresh")

	first, err := s.service.Register(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("taken"), first.ID)

	second, err := s.service.Register(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("fresh"), second.ID)
}

func (s *ServiceSuite) TestRegisterGivesUpAfterRepeatedCollisions() {
	s.ids.Queue("same", "same", "same", "same")

	_, err := s.service.Register(s.ctx)
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx)
	s.ErrorIs(err, ErrIDExhausted)
}

func (s *ServiceSuite) TestGetUnknownPlayer() {
	_, err := s.service.Get(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestDeathsForUnknownPlayer() {
	_, err := s.service.Deaths(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ServiceSuite) TestDeathsEmptyForNewPlayer() {
	player, err := s.service.Register(s.ctx)
	s.Require().NoError(err)

	deaths, err := s.service.Deaths(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Empty(deaths)
}
