package eventsubscribers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/authskin/authskin/internal/avatars"
	"github.com/authskin/authskin/internal/dispatcher"
)

type pingableFunc func(ctx context.Context) error

func (f pingableFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func TestDatabaseChecker(t *testing.T) {
	t.Run("no error", func(t *testing.T) {
		checker := DatabaseChecker(pingableFunc(func(ctx context.Context) error {
			return nil
		}))
		assert.NoError(t, checker(context.Background()))
	})

	t.Run("error", func(t *testing.T) {
		err := errors.New("mock error")
		checker := DatabaseChecker(pingableFunc(func(ctx context.Context) error {
			return err
		}))
		assert.Equal(t, err, checker(context.Background()))
	})

	t.Run("context timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		checker := DatabaseChecker(pingableFunc(func(ctx context.Context) error {
			<-release
			return nil
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.EqualError(t, checker(ctx), "check timeout")
	})
}

func TestAvatarsRenderChecker(t *testing.T) {
	t.Run("empty state", func(t *testing.T) {
		checker := AvatarsRenderChecker(dispatcher.New(), time.Millisecond)
		assert.Nil(t, checker(context.Background()))
	})

	t.Run("when error occurred", func(t *testing.T) {
		d := dispatcher.New()
		checker := AvatarsRenderChecker(d, time.Second)
		err := errors.New("disk is full")
		d.Emit("avatars:render_failed", "hash", err)
		assert.Equal(t, err, checker(context.Background()))
	})

	t.Run("ignore broken skins", func(t *testing.T) {
		d := dispatcher.New()
		checker := AvatarsRenderChecker(d, time.Second)
		d.Emit("avatars:render_failed", "hash", fmt.Errorf("%w: degenerate size", avatars.InvalidTextureImage))
		assert.Nil(t, checker(context.Background()))
	})

	t.Run("should reset value after passed duration", func(t *testing.T) {
		d := dispatcher.New()
		checker := AvatarsRenderChecker(d, 20*time.Millisecond)
		err := errors.New("disk is full")
		d.Emit("avatars:render_failed", "hash", err)
		assert.Equal(t, err, checker(context.Background()))
		time.Sleep(40 * time.Millisecond)
		assert.Nil(t, checker(context.Background()))
	})
}
