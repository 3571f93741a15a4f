package di

import (
	"errors"
	"log/slog"

	"github.com/defval/di"
	"github.com/spf13/viper"

	. "github.com/authskin/authskin/internal/http"
	"github.com/authskin/authskin/internal/profiles"
	"github.com/authskin/authskin/internal/security"
	"github.com/authskin/authskin/internal/sessions"
)

var securityDiOptions = di.Options(
	di.Provide(newKeyManager,
		di.As(new(profiles.TexturesSigner)),
		di.As(new(PublicKeyProvider)),
	),
	di.Provide(newPasswordHasher, di.As(new(sessions.PasswordVerifier))),
	di.Provide(newAuthenticator, di.As(new(Authenticator))),
)

// newKeyManager prefers the inline signing.key value. Without it the keypair is read from
// signing.dir and generated there on the first start.
func newKeyManager(config *viper.Viper) (*security.KeyManager, error) {
	config.SetDefault("signing.key", "")
	config.SetDefault("signing.dir", "data/keys")
	config.SetDefault("signing.bits", security.MinKeyBits)

	manager := security.NewKeyManager(config.GetString("signing.dir"), config.GetInt("signing.bits"))

	keyStr := config.GetString("signing.key")
	if keyStr == "" {
		err := manager.Load()
		if err != nil {
			return nil, err
		}

		slog.Info("Signing keypair is loaded", slog.String("dir", manager.Dir))

		return manager, nil
	}

	// The "base64:" prefixed form is decoded by the key parser
	err := manager.LoadPem([]byte(keyStr))
	if err != nil {
		return nil, err
	}

	return manager, nil
}

func newPasswordHasher(config *viper.Viper) *security.PasswordHasher {
	config.SetDefault("security.bcrypt_cost", 0)

	return security.NewPasswordHasher(config.GetInt("security.bcrypt_cost"))
}

func newAuthenticator(config *viper.Viper) (*security.Jwt, error) {
	key := config.GetString("authskin.secret")
	if key == "" {
		return nil, errors.New("authskin.secret must be set in order to use authenticator")
	}

	return security.NewJwt([]byte(key)), nil
}
