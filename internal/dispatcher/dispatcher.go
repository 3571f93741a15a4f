package dispatcher

import "github.com/asaskevich/EventBus"

type Subscriber interface {
	Subscribe(topic string, fn interface{})
	// SubscribeAsync registers a handler that runs outside the emitting goroutine.
	// Calls of the same handler are serialized when transactional is true.
	SubscribeAsync(topic string, fn interface{}, transactional bool)
}

type Emitter interface {
	Emit(topic string, args ...interface{})
}

type Dispatcher interface {
	Subscriber
	Emitter
	// WaitAsync blocks until all asynchronous handlers have returned
	WaitAsync()
}

type localEventDispatcher struct {
	bus EventBus.Bus
}

func (d *localEventDispatcher) Subscribe(topic string, fn interface{}) {
	_ = d.bus.Subscribe(topic, fn)
}

func (d *localEventDispatcher) SubscribeAsync(topic string, fn interface{}, transactional bool) {
	_ = d.bus.SubscribeAsync(topic, fn, transactional)
}

func (d *localEventDispatcher) Emit(topic string, args ...interface{}) {
	d.bus.Publish(topic, args...)
}

func (d *localEventDispatcher) WaitAsync() {
	d.bus.WaitAsync()
}

func New() Dispatcher {
	return &localEventDispatcher{
		bus: EventBus.New(),
	}
}
