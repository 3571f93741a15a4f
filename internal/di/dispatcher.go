package di

import (
	"log/slog"

	"github.com/defval/di"

	d "github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/eventsubscribers"
)

var dispatcherDiOptions = di.Options(
	di.Provide(newDispatcher,
		di.As(new(d.Emitter)),
		di.As(new(d.Subscriber)),
	),
	di.Invoke(enableEventsHandlers),
)

func newDispatcher() d.Dispatcher {
	return d.New()
}

func enableEventsHandlers(dispatcher d.Subscriber) {
	(&eventsubscribers.Logger{Logger: slog.Default()}).ConfigureWithDispatcher(dispatcher)
}
