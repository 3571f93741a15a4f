package di

import "github.com/defval/di"

func New() (*di.Container, error) {
	return di.New(
		avatarsDiOptions,
		configDiOptions,
		contextDiOptions,
		dbDiOptions,
		dispatcherDiOptions,
		handlersDiOptions,
		loggerDiOptions,
		securityDiOptions,
		serverDiOptions,
		sessionsDiOptions,
		texturesDiOptions,
	)
}
