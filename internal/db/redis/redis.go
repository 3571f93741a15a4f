package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/mediocregopher/radix/v4"

	"github.com/authskin/authskin/internal/db"
)

var timeNow = time.Now

type Redis struct {
	client     radix.Client
	serializer db.SessionSerializer
}

func New(ctx context.Context, sessionSerializer db.SessionSerializer, addr string, poolSize int) (*Redis, error) {
	client, err := (radix.PoolConfig{Size: poolSize}).New(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Redis{
		client:     client,
		serializer: sessionSerializer,
	}, nil
}

func (r *Redis) FindSession(ctx context.Context, accessToken string) (*db.Session, error) {
	var session *db.Session
	err := r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		var err error
		session, err = r.findSession(ctx, conn, accessToken)

		return err
	}))

	return session, err
}

func (r *Redis) findSession(ctx context.Context, conn radix.Conn, accessToken string) (*db.Session, error) {
	var encodedResult []byte
	err := conn.Do(ctx, radix.Cmd(&encodedResult, "GET", sessionKey(accessToken)))
	if err != nil {
		return nil, err
	}

	if len(encodedResult) == 0 {
		return nil, nil
	}

	return r.serializer.Deserialize(encodedResult)
}

func (r *Redis) SaveSession(ctx context.Context, session *db.Session) error {
	return r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		return r.saveSession(ctx, conn, session)
	}))
}

func (r *Redis) saveSession(ctx context.Context, conn radix.Conn, session *db.Session) error {
	ttl := session.ExpiresAt.Sub(timeNow()).Milliseconds()
	if ttl <= 0 {
		return r.removeSession(ctx, conn, session.AccessToken)
	}

	serializedSession, err := r.serializer.Serialize(session)
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.Cmd(nil, "MULTI"))
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.FlatCmd(nil, "SET", sessionKey(session.AccessToken), serializedSession, "PX", ttl))
	if err != nil {
		return err
	}

	accountKey := accountSessionsKey(session.AccountId)
	err = conn.Do(ctx, radix.Cmd(nil, "SADD", accountKey, session.AccessToken))
	if err != nil {
		return err
	}

	// The sessions lifetime is constant, so the last saved session always lives the longest
	err = conn.Do(ctx, radix.FlatCmd(nil, "PEXPIRE", accountKey, ttl))
	if err != nil {
		return err
	}

	if session.State == db.StateJoined && session.ServerId != "" {
		err = conn.Do(ctx, radix.FlatCmd(nil, "SET", joinKey(session.ProfileUuid, session.ServerId), session.AccessToken, "PX", ttl))
		if err != nil {
			return err
		}
	}

	return conn.Do(ctx, radix.Cmd(nil, "EXEC"))
}

func (r *Redis) RemoveSession(ctx context.Context, accessToken string) error {
	return r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		return r.removeSession(ctx, conn, accessToken)
	}))
}

func (r *Redis) removeSession(ctx context.Context, conn radix.Conn, accessToken string) error {
	session, err := r.findSession(ctx, conn, accessToken)
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.Cmd(nil, "MULTI"))
	if err != nil {
		return err
	}

	err = conn.Do(ctx, radix.Cmd(nil, "DEL", sessionKey(accessToken)))
	if err != nil {
		return err
	}

	if session != nil {
		err = conn.Do(ctx, radix.Cmd(nil, "SREM", accountSessionsKey(session.AccountId), accessToken))
		if err != nil {
			return err
		}
	}

	return conn.Do(ctx, radix.Cmd(nil, "EXEC"))
}

func (r *Redis) FindJoinedSession(ctx context.Context, profileUuid string, serverId string) (*db.Session, error) {
	var session *db.Session
	err := r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		var accessToken string
		err := conn.Do(ctx, radix.Cmd(&accessToken, "GET", joinKey(profileUuid, serverId)))
		if err != nil || accessToken == "" {
			return err
		}

		session, err = r.findSession(ctx, conn, accessToken)

		return err
	}))

	return session, err
}

func (r *Redis) RemoveSessionsByAccount(ctx context.Context, accountId int64) error {
	return r.client.Do(ctx, radix.WithConn("", func(ctx context.Context, conn radix.Conn) error {
		accountKey := accountSessionsKey(accountId)
		var tokens []string
		err := conn.Do(ctx, radix.Cmd(&tokens, "SMEMBERS", accountKey))
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(tokens)+1)
		for _, token := range tokens {
			keys = append(keys, sessionKey(token))
		}

		keys = append(keys, accountKey)

		return conn.Do(ctx, radix.Cmd(nil, "DEL", keys...))
	}))
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Do(ctx, radix.Cmd(nil, "PING"))
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func sessionKey(accessToken string) string {
	return "session:" + accessToken
}

func joinKey(profileUuid string, serverId string) string {
	return "join:" + profileUuid + ":" + serverId
}

func accountSessionsKey(accountId int64) string {
	return "account-sessions:" + strconv.FormatInt(accountId, 10)
}
