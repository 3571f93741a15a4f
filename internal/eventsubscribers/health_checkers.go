package eventsubscribers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/etherlabsio/healthcheck/v2"

	"github.com/authskin/authskin/internal/avatars"
	"github.com/authskin/authskin/internal/dispatcher"
)

type Pingable interface {
	Ping(ctx context.Context) error
}

func DatabaseChecker(connection Pingable) healthcheck.CheckerFunc {
	return func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() {
			done <- connection.Ping(ctx)
		}()

		select {
		case <-ctx.Done():
			return errors.New("check timeout")
		case err := <-done:
			return err
		}
	}
}

// AvatarsRenderChecker reports the last render failure until resetDuration passes without a new one.
// Skins that can't be rendered are the uploader's problem and don't affect the check.
func AvatarsRenderChecker(d dispatcher.Subscriber, resetDuration time.Duration) healthcheck.CheckerFunc {
	holder := &expiringErrHolder{D: resetDuration}
	d.Subscribe("avatars:render_failed", func(fingerprint string, err error) {
		if errors.Is(err, avatars.InvalidTextureImage) {
			return
		}

		holder.Set(err)
	})

	return func(ctx context.Context) error {
		return holder.Get()
	}
}

type expiringErrHolder struct {
	D   time.Duration
	err error
	l   sync.Mutex
	t   *time.Timer
}

func (h *expiringErrHolder) Get() error {
	h.l.Lock()
	defer h.l.Unlock()

	return h.err
}

func (h *expiringErrHolder) Set(err error) {
	h.l.Lock()
	defer h.l.Unlock()
	if h.t != nil {
		h.t.Stop()
		h.t = nil
	}

	h.err = err
	if err != nil {
		h.t = time.AfterFunc(h.D, func() {
			h.Set(nil)
		})
	}
}
