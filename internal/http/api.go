package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/huandu/xstrings"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/authskin/authskin/internal/avatars"
	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/otel"
	"github.com/authskin/authskin/internal/profiles"
	"github.com/authskin/authskin/internal/security"
	"github.com/authskin/authskin/internal/textures"
)

type TexturesManager interface {
	Upload(ctx context.Context, upload *textures.Upload) (*db.Texture, error)
	Assign(ctx context.Context, playerUuid string, kind db.TextureKind, textureId int64) error
	Remove(ctx context.Context, id int64) error
}

type PlayerFinder interface {
	FindPlayerById(ctx context.Context, id string) (*db.Player, error)
}

type TextureUrlGenerator interface {
	TextureUrl(fingerprint string) string
}

func NewApi(
	authenticator Authenticator,
	texturesManager TexturesManager,
	playerFinder PlayerFinder,
	signer ProfileSigner,
	urlGenerator TextureUrlGenerator,
) (*Api, error) {
	metrics, err := newApiMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &Api{
		Authenticator:       authenticator,
		TexturesManager:     texturesManager,
		PlayerFinder:        playerFinder,
		ProfileSigner:       signer,
		TextureUrlGenerator: urlGenerator,
		metrics:             metrics,
	}, nil
}

// Api is the management surface of the web console
type Api struct {
	Authenticator
	TexturesManager
	PlayerFinder
	ProfileSigner
	TextureUrlGenerator

	metrics *apiMetrics
}

func (a *Api) Handler() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	texturesRouter := router.PathPrefix("/textures").Subrouter()
	texturesRouter.Use(NewAuthenticationMiddleware(a.Authenticator, security.TexturesScope))
	texturesRouter.HandleFunc("", a.postTextureHandler).Methods(http.MethodPost)
	texturesRouter.HandleFunc("/{id:[0-9]+}", a.deleteTextureHandler).Methods(http.MethodDelete)

	playersRouter := router.PathPrefix("/players").Subrouter()
	playersRouter.Use(NewAuthenticationMiddleware(a.Authenticator, security.PlayersScope))
	playersRouter.HandleFunc("/{uuid}/{kind:(?:skin|cape)}", a.putPlayerTextureHandler).Methods(http.MethodPut)
	playersRouter.HandleFunc("/{uuid}/{kind:(?:skin|cape)}", a.deletePlayerTextureHandler).Methods(http.MethodDelete)
	playersRouter.HandleFunc("/{uuid}/profile", a.getPlayerProfileHandler).Methods(http.MethodGet)

	return router
}

type textureResponse struct {
	Id     int64  `json:"id"`
	Hash   string `json:"hash"`
	Kind   string `json:"kind"`
	Model  string `json:"model,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Url    string `json:"url"`
}

func (a *Api) postTextureHandler(resp http.ResponseWriter, req *http.Request) {
	a.metrics.UploadTextureRequest.Add(req.Context(), 1)

	req.Body = http.MaxBytesReader(resp, req.Body, textures.MaxTextureSize+(64<<10))
	err := req.ParseMultipartForm(textures.MaxTextureSize)
	if err != nil {
		apiBadRequest(resp, map[string][]string{
			"body": {"The body of the request must be a valid multipart form not bigger than 1MiB"},
		})
		return
	}

	accountId, err := strconv.ParseInt(req.FormValue("account"), 10, 64)
	if err != nil {
		apiBadRequest(resp, map[string][]string{
			"account": {"account must be a numeric id"},
		})
		return
	}

	file, _, err := req.FormFile("file")
	if err != nil {
		apiBadRequest(resp, map[string][]string{
			"file": {"file is a required field"},
		})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, textures.MaxTextureSize+1))
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to read the uploaded file: %w", err))
		return
	}

	texture, err := a.Upload(req.Context(), &textures.Upload{
		AccountId: accountId,
		Kind:      db.TextureKind(req.FormValue("kind")),
		Model:     req.FormValue("model"),
		Content:   content,
	})
	if err != nil {
		var v *textures.ValidationError
		if errors.As(err, &v) {
			// Upload fields are named after the form fields, just capitalized
			errorsPerField := make(map[string][]string, len(v.Errors))
			for field, fieldErrors := range v.Errors {
				field = xstrings.FirstRuneToLower(field)
				if field == "accountId" {
					field = "account"
				} else if field == "content" {
					field = "file"
				}

				errorsPerField[field] = fieldErrors
			}

			apiBadRequest(resp, errorsPerField)
			return
		}

		if errors.Is(err, avatars.InvalidTextureImage) {
			apiBadRequest(resp, map[string][]string{
				"file": {err.Error()},
			})
			return
		}

		if errors.Is(err, textures.AccountNotFound) {
			apiBadRequest(resp, map[string][]string{
				"account": {"account doesn't exist"},
			})
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to store the texture: %w", err))
		return
	}

	writeJson(resp, http.StatusCreated, &textureResponse{
		Id:     texture.Id,
		Hash:   texture.Hash,
		Kind:   string(texture.Kind),
		Model:  texture.Model,
		Width:  texture.Width,
		Height: texture.Height,
		Url:    a.TextureUrl(texture.Hash),
	})
}

func (a *Api) deleteTextureHandler(resp http.ResponseWriter, req *http.Request) {
	a.metrics.DeleteTextureRequest.Add(req.Context(), 1)

	id, _ := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	err := a.TexturesManager.Remove(req.Context(), id)
	if err != nil {
		if errors.Is(err, textures.TextureNotFound) {
			NotFoundHandler(resp, req)
			return
		}

		if errors.Is(err, db.TextureInUse) {
			apiConflict(resp, err.Error())
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to remove the texture: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func (a *Api) putPlayerTextureHandler(resp http.ResponseWriter, req *http.Request) {
	a.metrics.AssignTextureRequest.Add(req.Context(), 1)

	err := req.ParseForm()
	if err != nil {
		apiBadRequest(resp, map[string][]string{
			"body": {"The body of the request must be a valid url-encoded string"},
		})
		return
	}

	textureId, err := strconv.ParseInt(req.Form.Get("texture"), 10, 64)
	if err != nil || textureId < 1 {
		apiBadRequest(resp, map[string][]string{
			"texture": {"texture must be a numeric id"},
		})
		return
	}

	a.assignTexture(resp, req, textureId)
}

func (a *Api) deletePlayerTextureHandler(resp http.ResponseWriter, req *http.Request) {
	a.metrics.AssignTextureRequest.Add(req.Context(), 1)
	a.assignTexture(resp, req, 0)
}

func (a *Api) assignTexture(resp http.ResponseWriter, req *http.Request, textureId int64) {
	vars := mux.Vars(req)
	err := a.Assign(req.Context(), vars["uuid"], db.TextureKind(vars["kind"]), textureId)
	if err != nil {
		if errors.Is(err, textures.PlayerNotFound) {
			NotFoundHandler(resp, req)
			return
		}

		if errors.Is(err, textures.TextureNotFound) {
			apiBadRequest(resp, map[string][]string{
				"texture": {"texture doesn't exist or has another kind"},
			})
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to assign the texture: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func (a *Api) getPlayerProfileHandler(resp http.ResponseWriter, req *http.Request) {
	a.metrics.ProfileRequest.Add(req.Context(), 1)

	player, err := a.FindPlayerById(req.Context(), mux.Vars(req)["uuid"])
	if err != nil {
		if errors.Is(err, profiles.PlayerNotFound) {
			NotFoundHandler(resp, req)
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to retrieve a player: %w", err))
		return
	}

	profile, err := a.Sign(req.Context(), player)
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to sign the profile: %w", err))
		return
	}

	writeJson(resp, http.StatusOK, profile)
}

func newApiMetrics(meter metric.Meter) (*apiMetrics, error) {
	m := &apiMetrics{}
	var errors, err error

	m.UploadTextureRequest, err = meter.Int64Counter("authskin.app.api.textures.upload.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.DeleteTextureRequest, err = meter.Int64Counter("authskin.app.api.textures.delete.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.AssignTextureRequest, err = meter.Int64Counter("authskin.app.api.players.assign.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.ProfileRequest, err = meter.Int64Counter("authskin.app.api.players.profile.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	return m, errors
}

type apiMetrics struct {
	UploadTextureRequest metric.Int64Counter
	DeleteTextureRequest metric.Int64Counter
	AssignTextureRequest metric.Int64Counter
	ProfileRequest       metric.Int64Counter
}
