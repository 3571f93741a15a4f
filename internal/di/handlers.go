package di

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/defval/di"
	"github.com/etherlabsio/healthcheck/v2"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"

	"github.com/authskin/authskin/internal/avatars"
	. "github.com/authskin/authskin/internal/http"
	"github.com/authskin/authskin/internal/textures"
)

const (
	ModuleYggdrasil = "yggdrasil"
	ModuleApi       = "api"
)

var handlersDiOptions = di.Options(
	di.Provide(newHandlerFactory, di.As(new(http.Handler))),
	di.Provide(newYggdrasilHandler),
	di.Provide(newTexturesHandler),
	di.Provide(newApiHandler),
)

func newHandlerFactory(
	container *di.Container,
	config *viper.Viper,
) (*mux.Router, error) {
	enabledModules := config.GetStringSlice("modules")

	// gorilla.mux has no native way to combine multiple routers.
	// The mount hack works for prefixes in addresses, but leads to misbehavior
	// if you set an empty prefix. The protocol may be served from the root prefix,
	// so its router is used as the base one
	var router *mux.Router
	if slices.Contains(enabledModules, ModuleYggdrasil) {
		var yggdrasil *Yggdrasil
		if err := container.Resolve(&yggdrasil); err != nil {
			return nil, err
		}

		var texturesHandler *Textures
		if err := container.Resolve(&texturesHandler); err != nil {
			return nil, err
		}

		router = yggdrasil.Handler()
		texturesHandler.Register(router)

		apiLocationMiddleware := NewApiLocationMiddleware(yggdrasil.ApiLocation())
		router.Use(apiLocationMiddleware)
		// NotFoundHandler doesn't call for registered middlewares, so we must wrap it manually.
		// See https://github.com/gorilla/mux/issues/416#issuecomment-600079279
		router.NotFoundHandler = apiLocationMiddleware(http.HandlerFunc(NotFoundHandler))
	} else {
		router = mux.NewRouter()
		router.NotFoundHandler = http.HandlerFunc(NotFoundHandler)
	}

	router.StrictSlash(true)

	if slices.Contains(enabledModules, ModuleApi) {
		var api *Api
		if err := container.Resolve(&api); err != nil {
			return nil, err
		}

		apiRouter := api.Handler()
		apiRouter.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

		mount(router, "/api", apiRouter)
	}

	// Resolve health checkers last, because all the services required by the application
	// must first be initialized and each of them can publish its own checkers
	var healthCheckers []*namedHealthChecker
	if has, _ := container.Has(&healthCheckers); has {
		if err := container.Resolve(&healthCheckers); err != nil {
			return nil, err
		}

		checkersOptions := make([]healthcheck.Option, len(healthCheckers))
		for i, checker := range healthCheckers {
			checkersOptions[i] = healthcheck.WithChecker(checker.Name, checker.Checker)
		}

		router.Handle("/healthcheck", healthcheck.Handler(checkersOptions...)).Methods(http.MethodGet)
	}

	return router, nil
}

func newYggdrasilHandler(
	config *viper.Viper,
	authority SessionAuthority,
	players PlayersProvider,
	signer ProfileSigner,
	keys PublicKeyProvider,
) (*Yggdrasil, error) {
	config.SetDefault("yggdrasil.prefix", "/api/yggdrasil")
	config.SetDefault("yggdrasil.server_name", "authskin")
	config.SetDefault("yggdrasil.homepage", "")
	config.SetDefault("yggdrasil.register", "")
	config.SetDefault("yggdrasil.trust_forwarded_for", false)
	config.SetDefault("server.base_url", "http://localhost")

	skinDomains := config.GetStringSlice("yggdrasil.skin_domains")
	if len(skinDomains) == 0 {
		baseUrl, err := url.Parse(config.GetString("server.base_url"))
		if err == nil && baseUrl.Hostname() != "" {
			skinDomains = []string{baseUrl.Hostname()}
		}
	}

	yggdrasil, err := NewYggdrasil(
		config.GetString("yggdrasil.prefix"),
		authority,
		players,
		signer,
		keys,
		YggdrasilMeta{
			ServerName:  config.GetString("yggdrasil.server_name"),
			SkinDomains: skinDomains,
			Homepage:    config.GetString("yggdrasil.homepage"),
			Register:    config.GetString("yggdrasil.register"),
		},
	)
	if err != nil {
		return nil, err
	}

	yggdrasil.TrustForwardedFor = config.GetBool("yggdrasil.trust_forwarded_for")

	return yggdrasil, nil
}

func newTexturesHandler(texturesManager *textures.Manager, avatarsStorage *avatars.Storage) (*Textures, error) {
	return NewTextures(texturesManager, avatarsStorage)
}

func newApiHandler(
	authenticator Authenticator,
	texturesManager TexturesManager,
	playerFinder PlayerFinder,
	signer ProfileSigner,
	urlGenerator TextureUrlGenerator,
) (*Api, error) {
	return NewApi(authenticator, texturesManager, playerFinder, signer, urlGenerator)
}

func mount(router *mux.Router, path string, handler http.Handler) {
	router.PathPrefix(path).Handler(
		http.StripPrefix(
			strings.TrimSuffix(path, "/"),
			handler,
		),
	)
}

type namedHealthChecker struct {
	Name    string
	Checker healthcheck.Checker
}
