package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/yggdrasil"
)

var PlayerNotFound = errors.New("player not found")

// MaxBulkNames limits the number of names accepted by FindPlayersByNames
const MaxBulkNames = 100

type PlayersFinder interface {
	FindPlayerByUuid(ctx context.Context, uuid string) (*db.Player, error)
	FindPlayerByName(ctx context.Context, name string) (*db.Player, error)
}

func NewProvider(finder PlayersFinder) *Provider {
	return &Provider{
		PlayersFinder: finder,
	}
}

// Provider looks players up by the identifiers the protocol hands over
type Provider struct {
	PlayersFinder
}

// FindPlayerById accepts both the hyphenated and the unhyphenated form of the id
func (p *Provider) FindPlayerById(ctx context.Context, id string) (*db.Player, error) {
	playerId, err := yggdrasil.ParsePlayerId(id)
	if err != nil {
		return nil, PlayerNotFound
	}

	player, err := p.PlayersFinder.FindPlayerByUuid(ctx, playerId.Unsigned())
	if err != nil {
		return nil, err
	}

	if player == nil {
		return nil, PlayerNotFound
	}

	return player, nil
}

func (p *Provider) FindPlayerByName(ctx context.Context, name string) (*db.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, PlayerNotFound
	}

	player, err := p.PlayersFinder.FindPlayerByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if player == nil {
		return nil, PlayerNotFound
	}

	return player, nil
}

// FindPlayersByNames returns the known players in the order of the first mention of their names.
// Unknown names and repeats are skipped.
func (p *Provider) FindPlayersByNames(ctx context.Context, names []string) ([]*db.Player, error) {
	result := make([]*db.Player, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if seen[key] {
			continue
		}

		seen[key] = true

		player, err := p.FindPlayerByName(ctx, name)
		if errors.Is(err, PlayerNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		result = append(result, player)
	}

	return result, nil
}
