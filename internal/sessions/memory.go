package sessions

import (
	"context"
	"sync"

	"github.com/jellydator/ttlcache/v3"

	"github.com/authskin/authskin/internal/db"
)

// MemoryStore keeps sessions in the process memory. Each item lives until the session's
// expiration, and the join index entries share the lifetime of the session they point to.
type MemoryStore struct {
	once     sync.Once
	sessions *ttlcache.Cache[string, db.Session]
	joins    *ttlcache.Cache[string, string]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: ttlcache.New[string, db.Session](
			ttlcache.WithDisableTouchOnHit[string, db.Session](),
		),
		joins: ttlcache.New[string, string](
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (s *MemoryStore) FindSession(ctx context.Context, accessToken string) (*db.Session, error) {
	item := s.sessions.Get(accessToken)
	if item == nil {
		return nil, nil
	}

	// Return a copy so callers can't mutate the stored state without saving it
	session := item.Value()

	return &session, nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, session *db.Session) error {
	ttl := session.ExpiresAt.Sub(timeNow())
	if ttl <= 0 {
		s.sessions.Delete(session.AccessToken)
		return nil
	}

	s.sessions.Set(session.AccessToken, *session, ttl)
	if session.State == db.StateJoined && session.ServerId != "" {
		s.joins.Set(joinKey(session.ProfileUuid, session.ServerId), session.AccessToken, ttl)
	}

	s.startGcOnce()

	return nil
}

func (s *MemoryStore) RemoveSession(ctx context.Context, accessToken string) error {
	s.sessions.Delete(accessToken)

	return nil
}

func (s *MemoryStore) FindJoinedSession(ctx context.Context, profileUuid string, serverId string) (*db.Session, error) {
	item := s.joins.Get(joinKey(profileUuid, serverId))
	if item == nil {
		return nil, nil
	}

	return s.FindSession(ctx, item.Value())
}

func (s *MemoryStore) RemoveSessionsByAccount(ctx context.Context, accountId int64) error {
	for token, item := range s.sessions.Items() {
		if item.Value().AccountId == accountId {
			s.sessions.Delete(token)
		}
	}

	return nil
}

func (s *MemoryStore) StopGC() {
	// Stop() on a never started cache blocks forever
	s.startGcOnce()
	s.sessions.Stop()
	s.joins.Stop()
}

func (s *MemoryStore) startGcOnce() {
	s.once.Do(func() {
		go s.sessions.Start()
		go s.joins.Start()
	})
}

func joinKey(profileUuid string, serverId string) string {
	return profileUuid + ":" + serverId
}
