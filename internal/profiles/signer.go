package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/yggdrasil"
)

var timeNow = time.Now

type TexturesResolver interface {
	Resolve(ctx context.Context, player *db.Player) (*yggdrasil.Textures, error)
}

// TexturesSigner signs the base64 encoded textures value and returns the base64 encoded signature
type TexturesSigner interface {
	SignTextures(ctx context.Context, textures string) (string, error)
}

func NewSigner(resolver TexturesResolver, signer TexturesSigner) *Signer {
	return &Signer{
		TexturesResolver: resolver,
		TexturesSigner:   signer,
	}
}

type Signer struct {
	TexturesResolver
	TexturesSigner
}

// Sign builds the textures property of the player and signs it.
// The value is never returned without the signature.
func (s *Signer) Sign(ctx context.Context, player *db.Player) (*yggdrasil.ProfileResponse, error) {
	profileId, err := yggdrasil.ParsePlayerId(player.Uuid)
	if err != nil {
		return nil, fmt.Errorf("player %d has malformed uuid: %w", player.Id, err)
	}

	textures, err := s.Resolve(ctx, player)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve textures: %w", err)
	}

	value, err := yggdrasil.EncodeTextures(&yggdrasil.TexturesProp{
		Timestamp:   timeNow().UnixMilli(),
		ProfileID:   profileId.String(),
		ProfileName: player.Name,
		Textures:    textures,
	})
	if err != nil {
		return nil, err
	}

	signature, err := s.SignTextures(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("unable to sign textures: %w", err)
	}

	return &yggdrasil.ProfileResponse{
		Id:   profileId.Unsigned(),
		Name: player.Name,
		Props: []*yggdrasil.Property{
			{
				Name:      yggdrasil.TexturesPropertyName,
				Value:     value,
				Signature: signature,
			},
		},
	}, nil
}
