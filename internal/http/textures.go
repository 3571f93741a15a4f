package http

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/authskin/authskin/internal/otel"
)

type TexturesPathResolver interface {
	Path(fingerprint string) (string, error)
}

func NewTextures(textures TexturesPathResolver, avatars TexturesPathResolver) (*Textures, error) {
	metrics, err := newTexturesMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &Textures{
		Textures: textures,
		Avatars:  avatars,
		metrics:  metrics,
	}, nil
}

// Textures serves the uploaded files and the rendered heads. Both are addressed
// by the content fingerprint, so they never change and may be cached forever.
type Textures struct {
	Textures TexturesPathResolver
	Avatars  TexturesPathResolver

	metrics *texturesMetrics
}

func (t *Textures) Register(router *mux.Router) {
	router.HandleFunc("/textures/{fingerprint:[a-f0-9]{64}}", t.textureHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/avatars/{fingerprint:[a-f0-9]{64}}.png", t.avatarHandler).Methods(http.MethodGet, http.MethodHead)
}

func (t *Textures) textureHandler(resp http.ResponseWriter, req *http.Request) {
	t.metrics.TextureRequest.Add(req.Context(), 1)
	t.serve(resp, req, t.Textures)
}

func (t *Textures) avatarHandler(resp http.ResponseWriter, req *http.Request) {
	t.metrics.AvatarRequest.Add(req.Context(), 1)
	t.serve(resp, req, t.Avatars)
}

func (t *Textures) serve(resp http.ResponseWriter, req *http.Request, resolver TexturesPathResolver) {
	path, err := resolver.Path(mux.Vars(req)["fingerprint"])
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			NotFoundHandler(resp, req)
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to resolve the file: %w", err))
		return
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			NotFoundHandler(resp, req)
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to open the file: %w", err))
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to stat the file: %w", err))
		return
	}

	resp.Header().Set("Content-Type", "image/png")
	resp.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(resp, req, "", stat.ModTime(), file)
}

func newTexturesMetrics(meter metric.Meter) (*texturesMetrics, error) {
	m := &texturesMetrics{}
	var errors, err error

	m.TextureRequest, err = meter.Int64Counter("authskin.app.textures.texture.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.AvatarRequest, err = meter.Int64Counter("authskin.app.textures.avatar.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	return m, errors
}

type texturesMetrics struct {
	TextureRequest metric.Int64Counter
	AvatarRequest  metric.Int64Counter
}
