package di

import (
	"github.com/defval/di"
	"github.com/spf13/viper"

	"github.com/authskin/authskin/internal/dispatcher"
	. "github.com/authskin/authskin/internal/http"
	"github.com/authskin/authskin/internal/profiles"
	"github.com/authskin/authskin/internal/textures"
)

var texturesDiOptions = di.Options(
	di.Provide(newTexturesManager, di.As(new(TexturesManager))),
	di.Provide(newTexturesResolver,
		di.As(new(profiles.TexturesResolver)),
		di.As(new(TextureUrlGenerator)),
	),
	di.Provide(newProfilesProvider,
		di.As(new(PlayersProvider)),
		di.As(new(PlayerFinder)),
	),
	di.Provide(newProfileSigner, di.As(new(ProfileSigner))),
)

func newTexturesManager(
	config *viper.Viper,
	repository textures.TexturesRepository,
	identity textures.IdentityRepository,
	emitter dispatcher.Emitter,
) (*textures.Manager, error) {
	config.SetDefault("storage.textures.dir", "data/textures")

	return textures.NewManager(repository, identity, emitter, config.GetString("storage.textures.dir"))
}

func newTexturesResolver(config *viper.Viper, finder textures.TexturesFinder) *textures.Resolver {
	config.SetDefault("server.base_url", "http://localhost")

	return textures.NewResolver(finder, config.GetString("server.base_url"))
}

func newProfilesProvider(finder profiles.PlayersFinder) *profiles.Provider {
	return profiles.NewProvider(finder)
}

func newProfileSigner(resolver profiles.TexturesResolver, signer profiles.TexturesSigner) *profiles.Signer {
	return profiles.NewSigner(resolver, signer)
}
