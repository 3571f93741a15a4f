package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/authskin/authskin/internal/db"
)

type PlayersFinderMock struct {
	mock.Mock
}

func (m *PlayersFinderMock) FindPlayerByUuid(ctx context.Context, uuid string) (*db.Player, error) {
	args := m.Called(ctx, uuid)
	var result *db.Player
	if casted, ok := args.Get(0).(*db.Player); ok {
		result = casted
	}

	return result, args.Error(1)
}

func (m *PlayersFinderMock) FindPlayerByName(ctx context.Context, name string) (*db.Player, error) {
	args := m.Called(ctx, name)
	var result *db.Player
	if casted, ok := args.Get(0).(*db.Player); ok {
		result = casted
	}

	return result, args.Error(1)
}

type ProviderTestSuite struct {
	suite.Suite

	Provider *Provider

	PlayersFinder *PlayersFinderMock

	ctx context.Context
}

func (t *ProviderTestSuite) SetupSubTest() {
	t.ctx = context.Background()
	t.PlayersFinder = &PlayersFinderMock{}
	t.Provider = NewProvider(t.PlayersFinder)
}

func (t *ProviderTestSuite) TearDownSubTest() {
	t.PlayersFinder.AssertExpectations(t.T())
}

func (t *ProviderTestSuite) TestFindPlayerById() {
	player := &db.Player{Uuid: "ffc8fdc95824509e8a57c99b940fb996", Name: "Steve"}

	t.Run("unhyphenated", func() {
		t.PlayersFinder.On("FindPlayerByUuid", t.ctx, player.Uuid).Return(player, nil)

		result, err := t.Provider.FindPlayerById(t.ctx, "FFC8FDC95824509E8A57C99B940FB996")
		t.NoError(err)
		t.Same(player, result)
	})

	t.Run("hyphenated", func() {
		t.PlayersFinder.On("FindPlayerByUuid", t.ctx, player.Uuid).Return(player, nil)

		result, err := t.Provider.FindPlayerById(t.ctx, "ffc8fdc9-5824-509e-8a57-c99b940fb996")
		t.NoError(err)
		t.Same(player, result)
	})

	t.Run("malformed id", func() {
		_, err := t.Provider.FindPlayerById(t.ctx, "Steve")
		t.ErrorIs(err, PlayerNotFound)
	})

	t.Run("unknown player", func() {
		t.PlayersFinder.On("FindPlayerByUuid", t.ctx, player.Uuid).Return(nil, nil)

		_, err := t.Provider.FindPlayerById(t.ctx, player.Uuid)
		t.ErrorIs(err, PlayerNotFound)
	})

	t.Run("storage error", func() {
		expectedErr := errors.New("mock error")
		t.PlayersFinder.On("FindPlayerByUuid", t.ctx, player.Uuid).Return(nil, expectedErr)

		_, err := t.Provider.FindPlayerById(t.ctx, player.Uuid)
		t.ErrorIs(err, expectedErr)
	})
}

func (t *ProviderTestSuite) TestFindPlayersByNames() {
	t.Run("skip unknown and repeated names", func() {
		steve := &db.Player{Uuid: "ffc8fdc95824509e8a57c99b940fb996", Name: "Steve"}
		alex := &db.Player{Uuid: "0f0e0d0c0b0a09080706050403020100", Name: "Alex"}
		t.PlayersFinder.On("FindPlayerByName", t.ctx, "alex").Return(alex, nil).Once()
		t.PlayersFinder.On("FindPlayerByName", t.ctx, "Notch").Return(nil, nil).Once()
		t.PlayersFinder.On("FindPlayerByName", t.ctx, "Steve").Return(steve, nil).Once()

		result, err := t.Provider.FindPlayersByNames(t.ctx, []string{"alex", "Notch", "Steve", "ALEX", " "})
		t.NoError(err)
		t.Equal([]*db.Player{alex, steve}, result)
	})

	t.Run("storage error", func() {
		expectedErr := errors.New("mock error")
		t.PlayersFinder.On("FindPlayerByName", t.ctx, "Steve").Return(nil, expectedErr)

		_, err := t.Provider.FindPlayersByNames(t.ctx, []string{"Steve"})
		t.ErrorIs(err, expectedErr)
	})
}

func TestProvider(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}
