package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/huandu/xstrings"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/otel"
	"github.com/authskin/authskin/internal/profiles"
	"github.com/authskin/authskin/internal/sessions"
	"github.com/authskin/authskin/internal/version"
	"github.com/authskin/authskin/internal/yggdrasil"
)

const implementationName = "authskin"

// Bodies of the protocol requests are tiny, anything bigger is garbage
const maxProtocolBodySize = 64 << 10

type SessionAuthority interface {
	Authenticate(ctx context.Context, username string, password string, clientToken string) (*sessions.Authenticated, error)
	Refresh(ctx context.Context, accessToken string, clientToken string, selectedProfile string) (*sessions.Refreshed, error)
	Validate(ctx context.Context, accessToken string, clientToken string) error
	Invalidate(ctx context.Context, accessToken string) error
	Signout(ctx context.Context, username string, password string) error
	Join(ctx context.Context, accessToken string, selectedProfile string, serverId string, ip string) error
	HasJoined(ctx context.Context, playerName string, serverId string, ip string) (*db.Player, error)
}

type PlayersProvider interface {
	FindPlayerById(ctx context.Context, id string) (*db.Player, error)
	FindPlayersByNames(ctx context.Context, names []string) ([]*db.Player, error)
}

type ProfileSigner interface {
	Sign(ctx context.Context, player *db.Player) (*yggdrasil.ProfileResponse, error)
}

type PublicKeyProvider interface {
	PublicKeyPem() (string, error)
}

type YggdrasilMeta struct {
	ServerName  string
	SkinDomains []string
	Homepage    string
	Register    string
}

func NewYggdrasil(
	prefix string,
	authority SessionAuthority,
	players PlayersProvider,
	signer ProfileSigner,
	keys PublicKeyProvider,
	meta YggdrasilMeta,
) (*Yggdrasil, error) {
	metrics, err := newYggdrasilMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &Yggdrasil{
		Prefix:            strings.TrimSuffix(prefix, "/"),
		SessionAuthority:  authority,
		PlayersProvider:   players,
		ProfileSigner:     signer,
		PublicKeyProvider: keys,
		Meta:              meta,
		validator:         validator.New(),
		metrics:           metrics,
	}, nil
}

type Yggdrasil struct {
	SessionAuthority
	PlayersProvider
	ProfileSigner
	PublicKeyProvider
	Prefix string
	Meta   YggdrasilMeta
	// TrustForwardedFor makes the join remember the address from X-Forwarded-For
	TrustForwardedFor bool

	validator *validator.Validate
	metrics   *yggdrasilMetrics
}

// Handler registers the routes with the full prefix, so the router can serve as the root one
func (y *Yggdrasil) Handler() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc(y.Prefix+"/", y.metadataHandler).Methods(http.MethodGet)
	if y.Prefix != "" {
		router.HandleFunc(y.Prefix, y.metadataHandler).Methods(http.MethodGet)
	}

	router.HandleFunc(y.Prefix+"/authserver/authenticate", y.authenticateHandler).Methods(http.MethodPost)
	router.HandleFunc(y.Prefix+"/authserver/refresh", y.refreshHandler).Methods(http.MethodPost)
	router.HandleFunc(y.Prefix+"/authserver/validate", y.validateHandler).Methods(http.MethodPost)
	router.HandleFunc(y.Prefix+"/authserver/invalidate", y.invalidateHandler).Methods(http.MethodPost)
	router.HandleFunc(y.Prefix+"/authserver/signout", y.signoutHandler).Methods(http.MethodPost)
	router.HandleFunc(y.Prefix+"/sessionserver/session/minecraft/join", y.joinHandler).Methods(http.MethodPost)
	router.HandleFunc(y.Prefix+"/sessionserver/session/minecraft/hasJoined", y.hasJoinedHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc(y.Prefix+"/sessionserver/session/minecraft/profile/{id}", y.profileHandler).Methods(http.MethodGet)
	router.HandleFunc(y.Prefix+"/api/profiles/minecraft", y.bulkProfilesHandler).Methods(http.MethodPost)

	return router
}

// ApiLocation is the value of the X-Authlib-Injector-API-Location header
func (y *Yggdrasil) ApiLocation() string {
	if y.Prefix == "" {
		return "/"
	}

	return y.Prefix + "/"
}

type metadataResponse struct {
	Meta               map[string]any `json:"meta"`
	SkinDomains        []string       `json:"skinDomains"`
	SignaturePublicKey string         `json:"signaturePublickey"`
}

func (y *Yggdrasil) metadataHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.MetadataRequest.Add(req.Context(), 1)

	publicKey, err := y.PublicKeyPem()
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to retrieve public key: %w", err))
		return
	}

	meta := map[string]any{
		"serverName":              y.Meta.ServerName,
		"implementationName":      implementationName,
		"implementationVersion":   version.Version(),
		"feature.non_email_login": true,
	}

	links := map[string]string{}
	if y.Meta.Homepage != "" {
		links["homepage"] = y.Meta.Homepage
	}

	if y.Meta.Register != "" {
		links["register"] = y.Meta.Register
	}

	if len(links) > 0 {
		meta["links"] = links
	}

	skinDomains := y.Meta.SkinDomains
	if skinDomains == nil {
		skinDomains = []string{}
	}

	writeJson(resp, http.StatusOK, &metadataResponse{
		Meta:               meta,
		SkinDomains:        skinDomains,
		SignaturePublicKey: publicKey,
	})
}

type authenticateRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	ClientToken string `json:"clientToken" validate:"max=128"`
	RequestUser bool   `json:"requestUser"`
	Agent       *struct {
		Name    string `json:"name"`
		Version int    `json:"version"`
	} `json:"agent"`
}

type userResponse struct {
	Id         string                `json:"id"`
	Properties []*yggdrasil.Property `json:"properties"`
}

type authenticateResponse struct {
	AccessToken       string                   `json:"accessToken"`
	ClientToken       string                   `json:"clientToken"`
	AvailableProfiles []*yggdrasil.ProfileInfo `json:"availableProfiles"`
	SelectedProfile   *yggdrasil.ProfileInfo   `json:"selectedProfile,omitempty"`
	User              *userResponse            `json:"user"`
}

func (y *Yggdrasil) authenticateHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.AuthenticateRequest.Add(req.Context(), 1)

	var body authenticateRequest
	if !y.decodeRequest(resp, req, &body) {
		return
	}

	result, err := y.Authenticate(req.Context(), body.Username, body.Password, body.ClientToken)
	if err != nil {
		if errors.Is(err, sessions.InvalidCredentials) {
			protocolForbidden(resp, "Invalid credentials. Invalid username or password.")
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to authenticate: %w", err))
		return
	}

	availableProfiles := make([]*yggdrasil.ProfileInfo, 0, len(result.AvailableProfiles))
	for _, player := range result.AvailableProfiles {
		availableProfiles = append(availableProfiles, profileInfo(player))
	}

	writeJson(resp, http.StatusOK, &authenticateResponse{
		AccessToken:       result.Session.AccessToken,
		ClientToken:       result.Session.ClientToken,
		AvailableProfiles: availableProfiles,
		SelectedProfile:   profileInfo(result.SelectedProfile),
		User:              userInfo(result.Account),
	})
}

type refreshRequest struct {
	AccessToken     string                 `json:"accessToken" validate:"required"`
	ClientToken     string                 `json:"clientToken"`
	RequestUser     bool                   `json:"requestUser"`
	SelectedProfile *yggdrasil.ProfileInfo `json:"selectedProfile"`
}

type refreshResponse struct {
	AccessToken     string                 `json:"accessToken"`
	ClientToken     string                 `json:"clientToken"`
	SelectedProfile *yggdrasil.ProfileInfo `json:"selectedProfile,omitempty"`
	User            *userResponse          `json:"user,omitempty"`
}

func (y *Yggdrasil) refreshHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.RefreshRequest.Add(req.Context(), 1)

	var body refreshRequest
	if !y.decodeRequest(resp, req, &body) {
		return
	}

	selectedProfile := ""
	if body.SelectedProfile != nil {
		selectedProfile = body.SelectedProfile.Id
		if selectedProfile == "" {
			protocolBadRequest(resp, "Invalid profile.")
			return
		}
	}

	result, err := y.Refresh(req.Context(), body.AccessToken, body.ClientToken, selectedProfile)
	if err != nil {
		if errors.Is(err, sessions.InvalidToken) {
			protocolForbidden(resp, "Invalid token.")
			return
		}

		if errors.Is(err, sessions.InvalidProfile) {
			protocolBadRequest(resp, "Invalid profile.")
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to refresh the token: %w", err))
		return
	}

	response := &refreshResponse{
		AccessToken:     result.Session.AccessToken,
		ClientToken:     result.Session.ClientToken,
		SelectedProfile: profileInfo(result.SelectedProfile),
	}
	if body.RequestUser {
		response.User = userInfo(result.Account)
	}

	writeJson(resp, http.StatusOK, response)
}

type tokenRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
	ClientToken string `json:"clientToken"`
}

func (y *Yggdrasil) validateHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.ValidateRequest.Add(req.Context(), 1)

	var body tokenRequest
	if !y.decodeRequest(resp, req, &body) {
		return
	}

	err := y.Validate(req.Context(), body.AccessToken, body.ClientToken)
	if err != nil {
		if errors.Is(err, sessions.InvalidToken) {
			protocolForbidden(resp, "Invalid token.")
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to validate the token: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func (y *Yggdrasil) invalidateHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.InvalidateRequest.Add(req.Context(), 1)

	var body tokenRequest
	if !y.decodeRequest(resp, req, &body) {
		return
	}

	err := y.Invalidate(req.Context(), body.AccessToken)
	if err != nil && !errors.Is(err, sessions.InvalidToken) {
		apiServerError(resp, req, fmt.Errorf("unable to invalidate the token: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

type signoutRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (y *Yggdrasil) signoutHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.SignoutRequest.Add(req.Context(), 1)

	var body signoutRequest
	if !y.decodeRequest(resp, req, &body) {
		return
	}

	err := y.Signout(req.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, sessions.InvalidCredentials) {
			protocolForbidden(resp, "Invalid credentials. Invalid username or password.")
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to sign out: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

type joinRequest struct {
	AccessToken     string `json:"accessToken" validate:"required"`
	SelectedProfile string `json:"selectedProfile" validate:"required"`
	ServerId        string `json:"serverId" validate:"required,max=256"`
}

func (y *Yggdrasil) joinHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.JoinRequest.Add(req.Context(), 1)

	var body joinRequest
	if !y.decodeRequest(resp, req, &body) {
		return
	}

	err := y.Join(req.Context(), body.AccessToken, body.SelectedProfile, body.ServerId, remoteIp(req, y.TrustForwardedFor))
	if err != nil {
		if errors.Is(err, sessions.InvalidToken) {
			protocolForbidden(resp, "Invalid token.")
			return
		}

		if errors.Is(err, sessions.InvalidProfile) {
			protocolForbidden(resp, "Invalid profile.")
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to join the server: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func (y *Yggdrasil) hasJoinedHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.HasJoinedRequest.Add(req.Context(), 1)

	query := req.URL.Query()
	username := query.Get("username")
	serverId := query.Get("serverId")
	if username == "" || serverId == "" {
		protocolBadRequest(resp, "username and serverId are required.")
		return
	}

	player, err := y.HasJoined(req.Context(), username, serverId, query.Get("ip"))
	if err != nil {
		if errors.Is(err, sessions.NotJoined) {
			resp.WriteHeader(http.StatusNoContent)
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to check the join: %w", err))
		return
	}

	profile, err := y.Sign(req.Context(), player)
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to sign the profile: %w", err))
		return
	}

	if req.Method == http.MethodHead {
		resp.WriteHeader(http.StatusOK)
		return
	}

	writeJson(resp, http.StatusOK, profile)
}

func (y *Yggdrasil) profileHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.ProfileRequest.Add(req.Context(), 1)

	player, err := y.FindPlayerById(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		if errors.Is(err, profiles.PlayerNotFound) {
			resp.WriteHeader(http.StatusNotFound)
			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to retrieve a player: %w", err))
		return
	}

	profile, err := y.Sign(req.Context(), player)
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to sign the profile: %w", err))
		return
	}

	writeJson(resp, http.StatusOK, profile)
}

func (y *Yggdrasil) bulkProfilesHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.BulkProfilesRequest.Add(req.Context(), 1)

	var names []string
	err := json.NewDecoder(http.MaxBytesReader(resp, req.Body, maxProtocolBodySize)).Decode(&names)
	if err != nil {
		protocolBadRequest(resp, "The body of the request must be an array of names.")
		return
	}

	if len(names) > profiles.MaxBulkNames {
		protocolBadRequest(resp, fmt.Sprintf("Not more than %d profiles per call is allowed.", profiles.MaxBulkNames))
		return
	}

	players, err := y.FindPlayersByNames(req.Context(), names)
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to retrieve players: %w", err))
		return
	}

	result := make([]*yggdrasil.ProfileInfo, 0, len(players))
	for _, player := range players {
		result = append(result, profileInfo(player))
	}

	writeJson(resp, http.StatusOK, result)
}

// decodeRequest writes the 400 response itself and returns false when the body can't be used
func (y *Yggdrasil) decodeRequest(resp http.ResponseWriter, req *http.Request, body any) bool {
	err := json.NewDecoder(http.MaxBytesReader(resp, req.Body, maxProtocolBodySize)).Decode(body)
	if err != nil {
		protocolBadRequest(resp, "The body of the request must be a valid JSON object.")
		return false
	}

	err = y.validator.Struct(body)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			protocolBadRequest(resp, formatRequestErrors(validationErrors))
			return false
		}

		protocolBadRequest(resp, err.Error())
		return false
	}

	return true
}

func formatRequestErrors(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		field := xstrings.FirstRuneToLower(err.Field())
		switch err.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required.", field))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be a maximum of %s in length.", field, err.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid.", field))
		}
	}

	return strings.Join(messages, " ")
}

type protocolError struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

func protocolForbidden(resp http.ResponseWriter, message string) {
	writeJson(resp, http.StatusForbidden, &protocolError{
		Error:        "ForbiddenOperationException",
		ErrorMessage: message,
	})
}

func protocolBadRequest(resp http.ResponseWriter, message string) {
	writeJson(resp, http.StatusBadRequest, &protocolError{
		Error:        "IllegalArgumentException",
		ErrorMessage: message,
	})
}

func profileInfo(player *db.Player) *yggdrasil.ProfileInfo {
	if player == nil {
		return nil
	}

	return &yggdrasil.ProfileInfo{
		Id:   player.Uuid,
		Name: player.Name,
	}
}

func userInfo(account *db.Account) *userResponse {
	return &userResponse{
		Id:         account.Uuid,
		Properties: []*yggdrasil.Property{},
	}
}

func newYggdrasilMetrics(meter metric.Meter) (*yggdrasilMetrics, error) {
	m := &yggdrasilMetrics{}
	var errors, err error

	m.MetadataRequest, err = meter.Int64Counter("authskin.app.yggdrasil.metadata.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.AuthenticateRequest, err = meter.Int64Counter("authskin.app.yggdrasil.authenticate.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.RefreshRequest, err = meter.Int64Counter("authskin.app.yggdrasil.refresh.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.ValidateRequest, err = meter.Int64Counter("authskin.app.yggdrasil.validate.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.InvalidateRequest, err = meter.Int64Counter("authskin.app.yggdrasil.invalidate.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.SignoutRequest, err = meter.Int64Counter("authskin.app.yggdrasil.signout.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.JoinRequest, err = meter.Int64Counter("authskin.app.yggdrasil.join.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.HasJoinedRequest, err = meter.Int64Counter("authskin.app.yggdrasil.has_joined.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.ProfileRequest, err = meter.Int64Counter("authskin.app.yggdrasil.profile.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.BulkProfilesRequest, err = meter.Int64Counter("authskin.app.yggdrasil.bulk_profiles.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	return m, errors
}

type yggdrasilMetrics struct {
	MetadataRequest     metric.Int64Counter
	AuthenticateRequest metric.Int64Counter
	RefreshRequest      metric.Int64Counter
	ValidateRequest     metric.Int64Counter
	InvalidateRequest   metric.Int64Counter
	SignoutRequest      metric.Int64Counter
	JoinRequest         metric.Int64Counter
	HasJoinedRequest    metric.Int64Counter
	ProfileRequest      metric.Int64Counter
	BulkProfilesRequest metric.Int64Counter
}
