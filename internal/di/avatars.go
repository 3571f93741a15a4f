package di

import (
	"time"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"github.com/authskin/authskin/internal/avatars"
	"github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/eventsubscribers"
)

var avatarsDiOptions = di.Options(
	di.Provide(newAvatarsStorage),
	di.Provide(newAvatarsWorker),
	di.Invoke(enableAvatarsWorker),
)

func newAvatarsStorage(config *viper.Viper) (*avatars.Storage, error) {
	config.SetDefault("storage.avatars.dir", "data/avatars")

	return avatars.NewStorage(config.GetString("storage.avatars.dir"))
}

func newAvatarsWorker(
	config *viper.Viper,
	storage *avatars.Storage,
	emitter dispatcher.Emitter,
) (*avatars.Worker, error) {
	config.SetDefault("avatars.workers", 2)

	return avatars.NewWorker(&avatars.Renderer{}, storage, emitter, config.GetInt("avatars.workers"))
}

func enableAvatarsWorker(container *di.Container, worker *avatars.Worker, subscriber dispatcher.Subscriber) error {
	// The checker must subscribe before the worker can publish its first failure
	checker := eventsubscribers.AvatarsRenderChecker(subscriber, time.Minute)
	worker.ConfigureWithDispatcher(subscriber)

	return container.Provide(func() *namedHealthChecker {
		return &namedHealthChecker{
			Name:    "avatars-render",
			Checker: checker,
		}
	})
}
