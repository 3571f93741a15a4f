package eventsubscribers

import (
	"errors"
	"log/slog"

	"github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/sessions"
)

type Logger struct {
	*slog.Logger
}

func (l *Logger) ConfigureWithDispatcher(d dispatcher.Subscriber) {
	d.Subscribe("sessions:authenticate", l.handleAuthenticate)
	d.Subscribe("sessions:join", l.handleJoin)
	d.Subscribe("sessions:has_joined", l.handleHasJoined)
	d.Subscribe("avatars:render_failed", l.createAvatarsErrorHandler("Unable to render the avatar"))
	d.Subscribe("avatars:remove_failed", l.createAvatarsErrorHandler("Unable to remove the avatar"))
}

func (l *Logger) handleAuthenticate(username string, err error) {
	if err == nil {
		l.Info("Authenticated", slog.String("username", username))
		return
	}

	if errors.Is(err, sessions.InvalidCredentials) {
		l.Info("Authentication rejected", slog.String("username", username))
		return
	}

	l.Error("Authentication failed", slog.String("username", username), slog.Any("error", err))
}

func (l *Logger) handleJoin(profile string, serverId string, err error) {
	if err == nil {
		l.Debug("Joined", slog.String("profile", profile), slog.String("serverId", serverId))
		return
	}

	if errors.Is(err, sessions.InvalidToken) || errors.Is(err, sessions.InvalidProfile) {
		l.Info("Join rejected", slog.String("profile", profile), slog.String("serverId", serverId), slog.Any("error", err))
		return
	}

	l.Error("Join failed", slog.String("profile", profile), slog.String("serverId", serverId), slog.Any("error", err))
}

func (l *Logger) handleHasJoined(username string, serverId string, err error) {
	if err == nil {
		l.Debug("Join confirmed", slog.String("username", username), slog.String("serverId", serverId))
		return
	}

	if errors.Is(err, sessions.NotJoined) {
		l.Info("Join not confirmed", slog.String("username", username), slog.String("serverId", serverId))
		return
	}

	l.Error("Join check failed", slog.String("username", username), slog.String("serverId", serverId), slog.Any("error", err))
}

func (l *Logger) createAvatarsErrorHandler(message string) func(fingerprint string, err error) {
	return func(fingerprint string, err error) {
		l.Warn(message, slog.String("fingerprint", fingerprint), slog.Any("error", err))
	}
}
