package avatars

import (
	"context"
	"errors"
	"os"

	"github.com/brunomvsouza/singleflight"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/otel"
)

type AvatarRenderer interface {
	Render(src []byte, width int, height int) ([]byte, error)
}

type AvatarStorage interface {
	Exists(fingerprint string) bool
	Save(fingerprint string, data []byte) error
	Remove(fingerprint string) error
}

func NewWorker(renderer AvatarRenderer, storage AvatarStorage, emitter dispatcher.Emitter, concurrency int) (*Worker, error) {
	metrics, err := newWorkerMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	if concurrency < 1 {
		concurrency = 1
	}

	return &Worker{
		Renderer: renderer,
		Storage:  storage,
		Emitter:  emitter,
		slots:    make(chan struct{}, concurrency),
		metrics:  metrics,
	}, nil
}

// Worker renders heads of uploaded skins outside the request path.
// At most cap(slots) renders run at once and concurrent renders of the same skin are merged.
type Worker struct {
	Renderer AvatarRenderer
	Storage  AvatarStorage
	Emitter  dispatcher.Emitter

	slots   chan struct{}
	group   singleflight.Group[string, struct{}]
	metrics *workerMetrics
}

func (w *Worker) ConfigureWithDispatcher(d dispatcher.Subscriber) {
	d.SubscribeAsync("textures:uploaded", w.handleTextureUploaded, false)
	d.SubscribeAsync("textures:removed", w.handleTextureRemoved, false)
}

func (w *Worker) handleTextureUploaded(texture *db.Texture) {
	if texture.Kind != db.KindSkin {
		return
	}

	err := w.Process(context.Background(), texture)
	if err != nil {
		w.Emitter.Emit("avatars:render_failed", texture.Hash, err)
	}
}

func (w *Worker) handleTextureRemoved(texture *db.Texture) {
	if texture.Kind != db.KindSkin {
		return
	}

	err := w.Storage.Remove(texture.Hash)
	if err != nil {
		w.Emitter.Emit("avatars:remove_failed", texture.Hash, err)
	}
}

// Process renders and stores the head of the skin unless it's already present
func (w *Worker) Process(ctx context.Context, texture *db.Texture) error {
	if w.Storage.Exists(texture.Hash) {
		w.metrics.Skipped.Add(ctx, 1)
		return nil
	}

	_, err, shared := w.group.Do(texture.Hash, func() (struct{}, error) {
		select {
		case w.slots <- struct{}{}:
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
		defer func() {
			<-w.slots
		}()

		src, err := os.ReadFile(texture.Path)
		if err != nil {
			return struct{}{}, err
		}

		avatar, err := w.Renderer.Render(src, texture.Width, texture.Height)
		if err != nil {
			return struct{}{}, err
		}

		return struct{}{}, w.Storage.Save(texture.Hash, avatar)
	})

	if shared {
		w.metrics.Shared.Add(ctx, 1)
	}

	if err != nil {
		if errors.Is(err, InvalidTextureImage) {
			w.metrics.Rejected.Add(ctx, 1)
		} else {
			w.metrics.Failed.Add(ctx, 1)
		}

		return err
	}

	w.metrics.Rendered.Add(ctx, 1)

	return nil
}

func newWorkerMetrics(meter metric.Meter) (*workerMetrics, error) {
	m := &workerMetrics{}
	var errors, err error

	m.Rendered, err = meter.Int64Counter(
		"avatars.rendered",
		metric.WithDescription("Number of rendered heads"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Skipped, err = meter.Int64Counter(
		"avatars.skipped",
		metric.WithDescription("Number of uploads with an already rendered head"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Rejected, err = meter.Int64Counter(
		"avatars.rejected",
		metric.WithDescription("Number of skins that can't be rendered"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Failed, err = meter.Int64Counter(
		"avatars.failed",
		metric.WithDescription("Number of renders failed for other reasons"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Shared, err = meter.Int64Counter(
		"avatars.singleflight.shared",
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	return m, errors
}

type workerMetrics struct {
	Rendered metric.Int64Counter
	Skipped  metric.Int64Counter
	Rejected metric.Int64Counter
	Failed   metric.Int64Counter
	Shared   metric.Int64Counter
}
