package textures

import (
	"context"
	"strings"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/yggdrasil"
)

type TexturesFinder interface {
	FindActiveSkin(ctx context.Context, player *db.Player) (*db.Texture, error)
	FindActiveCape(ctx context.Context, player *db.Player) (*db.Texture, error)
}

func NewResolver(finder TexturesFinder, baseUrl string) *Resolver {
	return &Resolver{
		TexturesFinder: finder,
		BaseUrl:        strings.TrimSuffix(baseUrl, "/"),
	}
}

// Resolver turns the active textures of a player into the protocol descriptors
type Resolver struct {
	TexturesFinder
	BaseUrl string
}

// Resolve never returns nil textures. A player without an active skin gets an empty map,
// the cape is only reported together with a skin.
func (r *Resolver) Resolve(ctx context.Context, player *db.Player) (*yggdrasil.Textures, error) {
	result := &yggdrasil.Textures{}

	skin, err := r.FindActiveSkin(ctx, player)
	if err != nil {
		return nil, err
	}

	if skin == nil {
		return result, nil
	}

	result.Skin = &yggdrasil.SkinTexture{
		Url: r.TextureUrl(skin.Hash),
	}
	if skin.Model == yggdrasil.ModelSlim {
		result.Skin.Metadata.Model = yggdrasil.ModelSlim
	}

	cape, err := r.FindActiveCape(ctx, player)
	if err != nil {
		return nil, err
	}

	if cape != nil {
		result.Cape = &yggdrasil.CapeTexture{
			Url: r.TextureUrl(cape.Hash),
		}
	}

	return result, nil
}

func (r *Resolver) TextureUrl(fingerprint string) string {
	return r.BaseUrl + "/textures/" + fingerprint
}
