package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/profiles"
	"github.com/authskin/authskin/internal/security"
	"github.com/authskin/authskin/internal/sessions"
	"github.com/authskin/authskin/internal/yggdrasil"
)

type SessionAuthorityMock struct {
	mock.Mock
}

func (m *SessionAuthorityMock) Authenticate(ctx context.Context, username string, password string, clientToken string) (*sessions.Authenticated, error) {
	args := m.Called(ctx, username, password, clientToken)
	var result *sessions.Authenticated
	if casted, ok := args.Get(0).(*sessions.Authenticated); ok {
		result = casted
	}

	return result, args.Error(1)
}

func (m *SessionAuthorityMock) Refresh(ctx context.Context, accessToken string, clientToken string, selectedProfile string) (*sessions.Refreshed, error) {
	args := m.Called(ctx, accessToken, clientToken, selectedProfile)
	var result *sessions.Refreshed
	if casted, ok := args.Get(0).(*sessions.Refreshed); ok {
		result = casted
	}

	return result, args.Error(1)
}

func (m *SessionAuthorityMock) Validate(ctx context.Context, accessToken string, clientToken string) error {
	return m.Called(ctx, accessToken, clientToken).Error(0)
}

func (m *SessionAuthorityMock) Invalidate(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *SessionAuthorityMock) Signout(ctx context.Context, username string, password string) error {
	return m.Called(ctx, username, password).Error(0)
}

func (m *SessionAuthorityMock) Join(ctx context.Context, accessToken string, selectedProfile string, serverId string, ip string) error {
	return m.Called(ctx, accessToken, selectedProfile, serverId, ip).Error(0)
}

func (m *SessionAuthorityMock) HasJoined(ctx context.Context, playerName string, serverId string, ip string) (*db.Player, error) {
	args := m.Called(ctx, playerName, serverId, ip)
	var result *db.Player
	if casted, ok := args.Get(0).(*db.Player); ok {
		result = casted
	}

	return result, args.Error(1)
}

type PlayersProviderMock struct {
	mock.Mock
}

func (m *PlayersProviderMock) FindPlayerById(ctx context.Context, id string) (*db.Player, error) {
	args := m.Called(ctx, id)
	var result *db.Player
	if casted, ok := args.Get(0).(*db.Player); ok {
		result = casted
	}

	return result, args.Error(1)
}

func (m *PlayersProviderMock) FindPlayersByNames(ctx context.Context, names []string) ([]*db.Player, error) {
	args := m.Called(ctx, names)
	var result []*db.Player
	if casted, ok := args.Get(0).([]*db.Player); ok {
		result = casted
	}

	return result, args.Error(1)
}

type ProfileSignerMock struct {
	mock.Mock
}

func (m *ProfileSignerMock) Sign(ctx context.Context, player *db.Player) (*yggdrasil.ProfileResponse, error) {
	args := m.Called(ctx, player)
	var result *yggdrasil.ProfileResponse
	if casted, ok := args.Get(0).(*yggdrasil.ProfileResponse); ok {
		result = casted
	}

	return result, args.Error(1)
}

type PublicKeyProviderMock struct {
	mock.Mock
}

func (m *PublicKeyProviderMock) PublicKeyPem() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

var (
	steveAccount = &db.Account{Id: 1, Uuid: "0f0e0d0c0b0a09080706050403020100", Username: "steve"}
	stevePlayer  = &db.Player{Id: 1, AccountId: 1, Uuid: "ffc8fdc95824509e8a57c99b940fb996", Name: "Steve"}
	steveAlt     = &db.Player{Id: 2, AccountId: 1, Uuid: "a1b2c3d4e5f60718293a4b5c6d7e8f90", Name: "SteveAlt"}
	steveProfile = &yggdrasil.ProfileResponse{
		Id:   stevePlayer.Uuid,
		Name: stevePlayer.Name,
		Props: []*yggdrasil.Property{
			{Name: "textures", Value: "dGV4dHVyZXM=", Signature: "c2lnbmF0dXJl"},
		},
	}
)

const publicKeyPem = "-----BEGIN PUBLIC KEY-----\nMFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBANbUpVCZkMKpfvYZ08W3lumdAaYxLBnm\nUDlzHBQH3DpYef5WCO32TDU6feIJ58A0lAywgtZ4wwi2dGHOz/1hAvcCAwEAAQ==\n-----END PUBLIC KEY-----\n"

type YggdrasilTestSuite struct {
	suite.Suite

	App *Yggdrasil

	SessionAuthority  *SessionAuthorityMock
	PlayersProvider   *PlayersProviderMock
	ProfileSigner     *ProfileSignerMock
	PublicKeyProvider *PublicKeyProviderMock
}

func (t *YggdrasilTestSuite) SetupSubTest() {
	t.SessionAuthority = &SessionAuthorityMock{}
	t.PlayersProvider = &PlayersProviderMock{}
	t.ProfileSigner = &ProfileSignerMock{}
	t.PublicKeyProvider = &PublicKeyProviderMock{}

	app, err := NewYggdrasil(
		"/api/yggdrasil/",
		t.SessionAuthority,
		t.PlayersProvider,
		t.ProfileSigner,
		t.PublicKeyProvider,
		YggdrasilMeta{
			ServerName:  "My Server",
			SkinDomains: []string{"skins.example.com"},
			Homepage:    "https://example.com",
		},
	)
	t.Require().NoError(err)
	t.App = app
}

func (t *YggdrasilTestSuite) TearDownSubTest() {
	t.SessionAuthority.AssertExpectations(t.T())
	t.PlayersProvider.AssertExpectations(t.T())
	t.ProfileSigner.AssertExpectations(t.T())
	t.PublicKeyProvider.AssertExpectations(t.T())
}

func (t *YggdrasilTestSuite) serve(method string, url string, body string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, url, reader)
	req.RemoteAddr = "198.51.100.7:41234"
	w := httptest.NewRecorder()

	t.App.Handler().ServeHTTP(w, req)

	return w.Result()
}

func readBody(resp *http.Response) string {
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func (t *YggdrasilTestSuite) TestMetadata() {
	for _, url := range []string{"http://authskin/api/yggdrasil", "http://authskin/api/yggdrasil/"} {
		t.Run("metadata", func() {
			t.PublicKeyProvider.On("PublicKeyPem").Return(publicKeyPem, nil)

			result := t.serve("GET", url, "")
			t.Equal(http.StatusOK, result.StatusCode)
			t.Equal("application/json; charset=utf-8", result.Header.Get("Content-Type"))
			t.JSONEq(`{
				"meta": {
					"serverName": "My Server",
					"implementationName": "authskin",
					"implementationVersion": "undefined",
					"feature.non_email_login": true,
					"links": {
						"homepage": "https://example.com"
					}
				},
				"skinDomains": ["skins.example.com"],
				"signaturePublickey": "-----BEGIN PUBLIC KEY-----\nMFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBANbUpVCZkMKpfvYZ08W3lumdAaYxLBnm\nUDlzHBQH3DpYef5WCO32TDU6feIJ58A0lAywgtZ4wwi2dGHOz/1hAvcCAwEAAQ==\n-----END PUBLIC KEY-----\n"
			}`, readBody(result))
		})
	}

	t.Run("keys aren't loaded", func() {
		t.PublicKeyProvider.On("PublicKeyPem").Return("", security.SigningUnavailable)

		result := t.serve("GET", "http://authskin/api/yggdrasil", "")
		t.Equal(http.StatusInternalServerError, result.StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestAuthenticate() {
	t.Run("successful authentication", func() {
		t.SessionAuthority.On("Authenticate", mock.Anything, "steve", "secret", "client").Return(&sessions.Authenticated{
			Session:           &db.Session{AccessToken: "access", ClientToken: "client"},
			Account:           steveAccount,
			SelectedProfile:   stevePlayer,
			AvailableProfiles: []*db.Player{stevePlayer, steveAlt},
		}, nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/authenticate", `{
			"agent": {"name": "Minecraft", "version": 1},
			"username": "steve",
			"password": "secret",
			"clientToken": "client",
			"requestUser": true
		}`)
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`{
			"accessToken": "access",
			"clientToken": "client",
			"availableProfiles": [
				{"id": "ffc8fdc95824509e8a57c99b940fb996", "name": "Steve"},
				{"id": "a1b2c3d4e5f60718293a4b5c6d7e8f90", "name": "SteveAlt"}
			],
			"selectedProfile": {"id": "ffc8fdc95824509e8a57c99b940fb996", "name": "Steve"},
			"user": {"id": "0f0e0d0c0b0a09080706050403020100", "properties": []}
		}`, readBody(result))
	})

	t.Run("account without players", func() {
		t.SessionAuthority.On("Authenticate", mock.Anything, "steve", "secret", "").Return(&sessions.Authenticated{
			Session:           &db.Session{AccessToken: "access", ClientToken: "generated"},
			Account:           steveAccount,
			AvailableProfiles: []*db.Player{},
		}, nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/authenticate", `{"username": "steve", "password": "secret"}`)
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`{
			"accessToken": "access",
			"clientToken": "generated",
			"availableProfiles": [],
			"user": {"id": "0f0e0d0c0b0a09080706050403020100", "properties": []}
		}`, readBody(result))
	})

	t.Run("invalid credentials", func() {
		t.SessionAuthority.On("Authenticate", mock.Anything, "steve", "wrong", "").Return(nil, sessions.InvalidCredentials)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/authenticate", `{"username": "steve", "password": "wrong"}`)
		t.Equal(http.StatusForbidden, result.StatusCode)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid credentials. Invalid username or password."
		}`, readBody(result))
	})

	t.Run("malformed body", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/authenticate", `{"username": `)
		t.Equal(http.StatusBadRequest, result.StatusCode)
		t.Contains(readBody(result), "IllegalArgumentException")
	})

	t.Run("missing fields", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/authenticate", `{"username": "steve"}`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
		t.JSONEq(`{
			"error": "IllegalArgumentException",
			"errorMessage": "password is required."
		}`, readBody(result))
	})

	t.Run("storage error", func() {
		t.SessionAuthority.On("Authenticate", mock.Anything, "steve", "secret", "").Return(nil, errors.New("mock error"))

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/authenticate", `{"username": "steve", "password": "secret"}`)
		t.Equal(http.StatusInternalServerError, result.StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestRefresh() {
	t.Run("refresh without profile selection", func() {
		t.SessionAuthority.On("Refresh", mock.Anything, "access", "client", "").Return(&sessions.Refreshed{
			Session:         &db.Session{AccessToken: "new-access", ClientToken: "client"},
			Account:         steveAccount,
			SelectedProfile: stevePlayer,
		}, nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/refresh", `{"accessToken": "access", "clientToken": "client"}`)
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`{
			"accessToken": "new-access",
			"clientToken": "client",
			"selectedProfile": {"id": "ffc8fdc95824509e8a57c99b940fb996", "name": "Steve"}
		}`, readBody(result))
	})

	t.Run("select profile and request user", func() {
		t.SessionAuthority.On("Refresh", mock.Anything, "access", "client", steveAlt.Uuid).Return(&sessions.Refreshed{
			Session:         &db.Session{AccessToken: "new-access", ClientToken: "client"},
			Account:         steveAccount,
			SelectedProfile: steveAlt,
		}, nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/refresh", `{
			"accessToken": "access",
			"clientToken": "client",
			"requestUser": true,
			"selectedProfile": {"id": "a1b2c3d4e5f60718293a4b5c6d7e8f90", "name": "SteveAlt"}
		}`)
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`{
			"accessToken": "new-access",
			"clientToken": "client",
			"selectedProfile": {"id": "a1b2c3d4e5f60718293a4b5c6d7e8f90", "name": "SteveAlt"},
			"user": {"id": "0f0e0d0c0b0a09080706050403020100", "properties": []}
		}`, readBody(result))
	})

	t.Run("profile of another account", func() {
		t.SessionAuthority.On("Refresh", mock.Anything, "access", "client", "0f0e0d0c0b0a09080706050403020100").Return(nil, sessions.InvalidProfile)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/refresh", `{
			"accessToken": "access",
			"clientToken": "client",
			"selectedProfile": {"id": "0f0e0d0c0b0a09080706050403020100", "name": "Alex"}
		}`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
		t.JSONEq(`{"error": "IllegalArgumentException", "errorMessage": "Invalid profile."}`, readBody(result))
	})

	t.Run("empty selected profile", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/refresh", `{"accessToken": "access", "selectedProfile": {}}`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
	})

	t.Run("missing token", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/refresh", `{"clientToken": "client"}`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
	})

	t.Run("invalid token", func() {
		t.SessionAuthority.On("Refresh", mock.Anything, "expired", "client", "").Return(nil, sessions.InvalidToken)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/refresh", `{"accessToken": "expired", "clientToken": "client"}`)
		t.Equal(http.StatusForbidden, result.StatusCode)
		t.JSONEq(`{"error": "ForbiddenOperationException", "errorMessage": "Invalid token."}`, readBody(result))
	})
}

func (t *YggdrasilTestSuite) TestValidateInvalidateSignout() {
	t.Run("valid token", func() {
		t.SessionAuthority.On("Validate", mock.Anything, "access", "").Return(nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/validate", `{"accessToken": "access"}`)
		t.Equal(http.StatusNoContent, result.StatusCode)
	})

	t.Run("invalid token", func() {
		t.SessionAuthority.On("Validate", mock.Anything, "access", "client").Return(sessions.InvalidToken)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/validate", `{"accessToken": "access", "clientToken": "client"}`)
		t.Equal(http.StatusForbidden, result.StatusCode)
	})

	t.Run("invalidate unknown token", func() {
		t.SessionAuthority.On("Invalidate", mock.Anything, "access").Return(sessions.InvalidToken)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/invalidate", `{"accessToken": "access", "clientToken": "client"}`)
		t.Equal(http.StatusNoContent, result.StatusCode)
	})

	t.Run("signout", func() {
		t.SessionAuthority.On("Signout", mock.Anything, "steve", "secret").Return(nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/signout", `{"username": "steve", "password": "secret"}`)
		t.Equal(http.StatusNoContent, result.StatusCode)
	})

	t.Run("signout with wrong password", func() {
		t.SessionAuthority.On("Signout", mock.Anything, "steve", "wrong").Return(sessions.InvalidCredentials)

		result := t.serve("POST", "http://authskin/api/yggdrasil/authserver/signout", `{"username": "steve", "password": "wrong"}`)
		t.Equal(http.StatusForbidden, result.StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestJoin() {
	t.Run("successful join", func() {
		t.SessionAuthority.On("Join", mock.Anything, "access", stevePlayer.Uuid, "-2fe8a5b0", "198.51.100.7").Return(nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/join", `{
			"accessToken": "access",
			"selectedProfile": "ffc8fdc95824509e8a57c99b940fb996",
			"serverId": "-2fe8a5b0"
		}`)
		t.Equal(http.StatusNoContent, result.StatusCode)
	})

	t.Run("forwarded address is trusted", func() {
		t.App.TrustForwardedFor = true
		t.SessionAuthority.On("Join", mock.Anything, "access", stevePlayer.Uuid, "server", "203.0.113.9").Return(nil)

		req := httptest.NewRequest("POST", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/join", strings.NewReader(`{
			"accessToken": "access",
			"selectedProfile": "ffc8fdc95824509e8a57c99b940fb996",
			"serverId": "server"
		}`))
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		w := httptest.NewRecorder()
		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Code)
	})

	t.Run("invalid token", func() {
		t.SessionAuthority.On("Join", mock.Anything, "access", stevePlayer.Uuid, "server", mock.Anything).Return(sessions.InvalidToken)

		result := t.serve("POST", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/join", `{
			"accessToken": "access",
			"selectedProfile": "ffc8fdc95824509e8a57c99b940fb996",
			"serverId": "server"
		}`)
		t.Equal(http.StatusForbidden, result.StatusCode)
		t.JSONEq(`{"error": "ForbiddenOperationException", "errorMessage": "Invalid token."}`, readBody(result))
	})

	t.Run("invalid profile", func() {
		t.SessionAuthority.On("Join", mock.Anything, "access", "0f0e0d0c0b0a09080706050403020100", "server", mock.Anything).Return(sessions.InvalidProfile)

		result := t.serve("POST", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/join", `{
			"accessToken": "access",
			"selectedProfile": "0f0e0d0c0b0a09080706050403020100",
			"serverId": "server"
		}`)
		t.Equal(http.StatusForbidden, result.StatusCode)
		t.JSONEq(`{"error": "ForbiddenOperationException", "errorMessage": "Invalid profile."}`, readBody(result))
	})

	t.Run("missing server id", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/join", `{
			"accessToken": "access",
			"selectedProfile": "ffc8fdc95824509e8a57c99b940fb996"
		}`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
		t.JSONEq(`{"error": "IllegalArgumentException", "errorMessage": "serverId is required."}`, readBody(result))
	})
}

func (t *YggdrasilTestSuite) TestHasJoined() {
	t.Run("joined player", func() {
		t.SessionAuthority.On("HasJoined", mock.Anything, "Steve", "server", "").Return(stevePlayer, nil)
		t.ProfileSigner.On("Sign", mock.Anything, stevePlayer).Return(steveProfile, nil)

		result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/hasJoined?username=Steve&serverId=server", "")
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`{
			"id": "ffc8fdc95824509e8a57c99b940fb996",
			"name": "Steve",
			"properties": [
				{"name": "textures", "value": "dGV4dHVyZXM=", "signature": "c2lnbmF0dXJl"}
			]
		}`, readBody(result))
	})

	t.Run("head request with ip", func() {
		t.SessionAuthority.On("HasJoined", mock.Anything, "Steve", "server", "198.51.100.7").Return(stevePlayer, nil)
		t.ProfileSigner.On("Sign", mock.Anything, stevePlayer).Return(steveProfile, nil)

		result := t.serve("HEAD", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/hasJoined?username=Steve&serverId=server&ip=198.51.100.7", "")
		t.Equal(http.StatusOK, result.StatusCode)
		t.Empty(readBody(result))
	})

	t.Run("not joined", func() {
		t.SessionAuthority.On("HasJoined", mock.Anything, "Steve", "other", "").Return(nil, sessions.NotJoined)

		result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/hasJoined?username=Steve&serverId=other", "")
		t.Equal(http.StatusNoContent, result.StatusCode)
		t.Empty(readBody(result))
	})

	t.Run("missing server id", func() {
		result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/hasJoined?username=Steve", "")
		t.Equal(http.StatusBadRequest, result.StatusCode)
	})

	t.Run("signing unavailable", func() {
		t.SessionAuthority.On("HasJoined", mock.Anything, "Steve", "server", "").Return(stevePlayer, nil)
		t.ProfileSigner.On("Sign", mock.Anything, stevePlayer).Return(nil, security.SigningUnavailable)

		result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/hasJoined?username=Steve&serverId=server", "")
		t.Equal(http.StatusInternalServerError, result.StatusCode)
		t.NotContains(readBody(result), "textures")
	})
}

func (t *YggdrasilTestSuite) TestProfile() {
	for _, id := range []string{"ffc8fdc95824509e8a57c99b940fb996", "ffc8fdc9-5824-509e-8a57-c99b940fb996"} {
		t.Run("known player", func() {
			t.PlayersProvider.On("FindPlayerById", mock.Anything, id).Return(stevePlayer, nil)
			t.ProfileSigner.On("Sign", mock.Anything, stevePlayer).Return(steveProfile, nil)

			result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/profile/"+id+"?unsigned=false", "")
			t.Equal(http.StatusOK, result.StatusCode)
			t.Contains(readBody(result), `"signature":"c2lnbmF0dXJl"`)
		})
	}

	t.Run("unknown player", func() {
		t.PlayersProvider.On("FindPlayerById", mock.Anything, "notch").Return(nil, profiles.PlayerNotFound)

		result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/profile/notch", "")
		t.Equal(http.StatusNotFound, result.StatusCode)
	})

	t.Run("storage error", func() {
		t.PlayersProvider.On("FindPlayerById", mock.Anything, stevePlayer.Uuid).Return(nil, errors.New("mock error"))

		result := t.serve("GET", "http://authskin/api/yggdrasil/sessionserver/session/minecraft/profile/"+stevePlayer.Uuid, "")
		t.Equal(http.StatusInternalServerError, result.StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestBulkProfiles() {
	t.Run("known names", func() {
		t.PlayersProvider.On("FindPlayersByNames", mock.Anything, []string{"Steve", "Notch"}).Return([]*db.Player{stevePlayer}, nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/api/profiles/minecraft", `["Steve", "Notch"]`)
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`[{"id": "ffc8fdc95824509e8a57c99b940fb996", "name": "Steve"}]`, readBody(result))
	})

	t.Run("nothing found", func() {
		t.PlayersProvider.On("FindPlayersByNames", mock.Anything, []string{"Notch"}).Return([]*db.Player{}, nil)

		result := t.serve("POST", "http://authskin/api/yggdrasil/api/profiles/minecraft", `["Notch"]`)
		t.Equal(http.StatusOK, result.StatusCode)
		t.JSONEq(`[]`, readBody(result))
	})

	t.Run("not an array", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/api/profiles/minecraft", `{"name": "Steve"}`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
	})

	t.Run("too many names", func() {
		result := t.serve("POST", "http://authskin/api/yggdrasil/api/profiles/minecraft", `[`+strings.TrimSuffix(strings.Repeat(`"a",`, profiles.MaxBulkNames+1), ",")+`]`)
		t.Equal(http.StatusBadRequest, result.StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestApiLocation() {
	t.Run("api location", func() {
		t.Equal("/api/yggdrasil/", t.App.ApiLocation())
		t.Equal("/", (&Yggdrasil{}).ApiLocation())
	})
}

func TestYggdrasil(t *testing.T) {
	suite.Run(t, new(YggdrasilTestSuite))
}

