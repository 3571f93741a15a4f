package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/db/redis"
	"github.com/authskin/authskin/internal/db/sqlite"
	"github.com/authskin/authskin/internal/eventsubscribers"
	"github.com/authskin/authskin/internal/profiles"
	"github.com/authskin/authskin/internal/sessions"
	"github.com/authskin/authskin/internal/textures"
)

const (
	SessionsBackendMemory = "memory"
	SessionsBackendRedis  = "redis"
)

// The identity store has a single implementation, while sessions may be kept
// either in memory or in Redis depending on the sessions.backend option.
var dbDiOptions = di.Options(
	di.Provide(newSqlite,
		di.As(new(sessions.AccountsFinder)),
		di.As(new(sessions.PlayersFinder)),
		di.As(new(profiles.PlayersFinder)),
		di.As(new(textures.TexturesRepository)),
		di.As(new(textures.IdentityRepository)),
		di.As(new(textures.TexturesFinder)),
	),
	di.Provide(newSessionsStore),
)

func newSqlite(ctx context.Context, container *di.Container, config *viper.Viper) (*sqlite.Sqlite, error) {
	config.SetDefault("storage.sqlite.path", "data/authskin.db")

	path := config.GetString("storage.sqlite.path")
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, fmt.Errorf("unable to create the database dir: %w", err)
	}

	conn, err := sqlite.New(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := container.Provide(func() *namedHealthChecker {
		return &namedHealthChecker{
			Name:    "sqlite",
			Checker: eventsubscribers.DatabaseChecker(conn),
		}
	}); err != nil {
		return nil, err
	}

	return conn, nil
}

func newSessionsStore(ctx context.Context, container *di.Container, config *viper.Viper) (sessions.Store, error) {
	config.SetDefault("sessions.backend", SessionsBackendMemory)

	backend := config.GetString("sessions.backend")
	switch backend {
	case SessionsBackendMemory:
		return sessions.NewMemoryStore(), nil
	case SessionsBackendRedis:
		store, err := newRedis(ctx, container, config)
		if err != nil {
			return nil, err
		}

		return store, nil
	}

	return nil, fmt.Errorf("unknown sessions backend \"%s\", expected one of [%s %s]", backend, SessionsBackendMemory, SessionsBackendRedis)
}

func newRedis(ctx context.Context, container *di.Container, config *viper.Viper) (*redis.Redis, error) {
	config.SetDefault("storage.redis.host", "localhost")
	config.SetDefault("storage.redis.port", 6379)
	config.SetDefault("storage.redis.poolSize", 10)

	conn, err := redis.New(
		ctx,
		db.NewJsonSerializer(),
		fmt.Sprintf("%s:%d", config.GetString("storage.redis.host"), config.GetInt("storage.redis.port")),
		config.GetInt("storage.redis.poolSize"),
	)
	if err != nil {
		return nil, err
	}

	if err := container.Provide(func() *namedHealthChecker {
		return &namedHealthChecker{
			Name:    "redis",
			Checker: eventsubscribers.DatabaseChecker(conn),
		}
	}); err != nil {
		return nil, err
	}

	return conn, nil
}
