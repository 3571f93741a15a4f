package di

import (
	"github.com/defval/di"
	"github.com/spf13/viper"

	"github.com/authskin/authskin/internal/dispatcher"
	. "github.com/authskin/authskin/internal/http"
	"github.com/authskin/authskin/internal/sessions"
)

var sessionsDiOptions = di.Options(
	di.Provide(newSessionAuthority, di.As(new(SessionAuthority))),
)

func newSessionAuthority(
	config *viper.Viper,
	accounts sessions.AccountsFinder,
	players sessions.PlayersFinder,
	passwords sessions.PasswordVerifier,
	store sessions.Store,
	emitter dispatcher.Emitter,
) (*sessions.Authority, error) {
	config.SetDefault("sessions.ttl", "72h")
	config.SetDefault("sessions.join_ttl", "30s")

	return sessions.NewAuthority(
		accounts,
		players,
		passwords,
		store,
		emitter,
		config.GetDuration("sessions.ttl"),
		config.GetDuration("sessions.join_ttl"),
	)
}
