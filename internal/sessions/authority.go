package sessions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/otel"
	"github.com/authskin/authskin/internal/yggdrasil"
)

var timeNow = time.Now

// locksCount is the number of mutexes the accounts are spread over
const locksCount = 64

var (
	InvalidCredentials = errors.New("invalid credentials. Invalid username or password")
	InvalidToken       = errors.New("invalid token")
	InvalidProfile     = errors.New("invalid profile")
	NotJoined          = errors.New("the player hasn't joined the server")
)

type AccountsFinder interface {
	FindAccountByUsername(ctx context.Context, username string) (*db.Account, error)
	FindAccountById(ctx context.Context, id int64) (*db.Account, error)
}

type PlayersFinder interface {
	FindPlayerByUuid(ctx context.Context, uuid string) (*db.Player, error)
	FindPlayerByName(ctx context.Context, name string) (*db.Player, error)
	FindPlayersByAccount(ctx context.Context, accountId int64) ([]*db.Player, error)
}

type PasswordVerifier interface {
	Verify(hash string, password string) bool
}

type Store interface {
	FindSession(ctx context.Context, accessToken string) (*db.Session, error)
	SaveSession(ctx context.Context, session *db.Session) error
	RemoveSession(ctx context.Context, accessToken string) error
	// FindJoinedSession returns the session that was last joined to the server by the player.
	// The caller must still check the session's state since the index may outlive a rotation.
	FindJoinedSession(ctx context.Context, profileUuid string, serverId string) (*db.Session, error)
	RemoveSessionsByAccount(ctx context.Context, accountId int64) error
}

type Authenticated struct {
	Session           *db.Session
	Account           *db.Account
	SelectedProfile   *db.Player
	AvailableProfiles []*db.Player
}

type Refreshed struct {
	Session         *db.Session
	Account         *db.Account
	SelectedProfile *db.Player
}

func NewAuthority(
	accounts AccountsFinder,
	players PlayersFinder,
	passwords PasswordVerifier,
	store Store,
	emitter dispatcher.Emitter,
	ttl time.Duration,
	joinTtl time.Duration,
) (*Authority, error) {
	metrics, err := newAuthorityMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &Authority{
		Accounts:  accounts,
		Players:   players,
		Passwords: passwords,
		Store:     store,
		Emitter:   emitter,
		Ttl:       ttl,
		JoinTtl:   joinTtl,
		metrics:   metrics,
	}, nil
}

// Authority drives the session lifecycle: Authenticated, then Joined, then Revoked or expired.
// Transitions of the same account are serialized, so a join can't observe a token that
// a concurrent refresh has already rotated. The locks are held in process memory, so
// a shared sessions store must be served by a single instance.
type Authority struct {
	Accounts  AccountsFinder
	Players   PlayersFinder
	Passwords PasswordVerifier
	Store     Store
	Emitter   dispatcher.Emitter
	Ttl       time.Duration
	JoinTtl   time.Duration

	locks   [locksCount]sync.Mutex
	metrics *authorityMetrics
}

func (a *Authority) Authenticate(ctx context.Context, username string, password string, clientToken string) (*Authenticated, error) {
	account, err := a.verifyCredentials(ctx, username, password)
	a.Emitter.Emit("sessions:authenticate", username, err)
	if err != nil {
		a.metrics.AuthenticationFailed.Add(ctx, 1)
		return nil, err
	}

	players, err := a.Players.FindPlayersByAccount(ctx, account.Id)
	if err != nil {
		return nil, err
	}

	if clientToken == "" {
		clientToken = newToken()
	}

	now := timeNow()
	session := &db.Session{
		AccessToken: newToken(),
		ClientToken: clientToken,
		AccountId:   account.Id,
		State:       db.StateAuthenticated,
		IssuedAt:    now,
		ExpiresAt:   now.Add(a.Ttl),
	}

	var selected *db.Player
	if len(players) > 0 {
		selected = players[0]
		session.ProfileUuid = selected.Uuid
	}

	unlock := a.lockAccount(account.Id)
	err = a.Store.SaveSession(ctx, session)
	unlock()
	if err != nil {
		return nil, err
	}

	a.metrics.AuthenticationSucceeded.Add(ctx, 1)

	return &Authenticated{
		Session:           session,
		Account:           account,
		SelectedProfile:   selected,
		AvailableProfiles: players,
	}, nil
}

// Refresh rotates the access token. A profile may be (re)selected only among the players
// of the session's account. The join context survives the rotation while the profile stays the same.
func (a *Authority) Refresh(ctx context.Context, accessToken string, clientToken string, selectedProfile string) (*Refreshed, error) {
	session, unlock, err := a.lockSession(ctx, accessToken, clientToken)
	if err != nil {
		return nil, err
	}
	defer unlock()

	account, err := a.Accounts.FindAccountById(ctx, session.AccountId)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, InvalidToken
	}

	profileUuid := session.ProfileUuid
	if selectedProfile != "" {
		profileUuid = yggdrasil.NormalizeUuid(selectedProfile)
		if profileUuid == "" {
			return nil, InvalidProfile
		}
	}

	var selected *db.Player
	if profileUuid != "" {
		selected, err = a.Players.FindPlayerByUuid(ctx, profileUuid)
		if err != nil {
			return nil, err
		}

		if selected != nil && selected.AccountId != account.Id {
			return nil, InvalidProfile
		}

		if selected == nil && selectedProfile != "" {
			return nil, InvalidProfile
		}
	}

	now := timeNow()
	rotated := &db.Session{
		AccessToken: newToken(),
		ClientToken: session.ClientToken,
		AccountId:   session.AccountId,
		State:       db.StateAuthenticated,
		IssuedAt:    now,
		ExpiresAt:   now.Add(a.Ttl),
	}
	if selected != nil {
		rotated.ProfileUuid = selected.Uuid
		if session.State == db.StateJoined && session.ProfileUuid == selected.Uuid {
			rotated.State = db.StateJoined
			rotated.ServerId = session.ServerId
			rotated.JoinedIp = session.JoinedIp
			rotated.JoinedAt = session.JoinedAt
		}
	}

	err = a.Store.SaveSession(ctx, rotated)
	if err != nil {
		return nil, err
	}

	err = a.Store.RemoveSession(ctx, session.AccessToken)
	if err != nil {
		return nil, err
	}

	a.metrics.Refreshed.Add(ctx, 1)

	return &Refreshed{
		Session:         rotated,
		Account:         account,
		SelectedProfile: selected,
	}, nil
}

// Join pins the session to the server. When the session already has a selected profile,
// only that profile may join; otherwise any player of the account binds to the session.
func (a *Authority) Join(ctx context.Context, accessToken string, selectedProfile string, serverId string, ip string) (err error) {
	defer func() {
		a.Emitter.Emit("sessions:join", selectedProfile, serverId, err)
		if err == nil {
			a.metrics.Joined.Add(ctx, 1)
		}
	}()

	session, unlock, err := a.lockSession(ctx, accessToken, "")
	if err != nil {
		return err
	}
	defer unlock()

	profileUuid := yggdrasil.NormalizeUuid(selectedProfile)
	if profileUuid == "" {
		return InvalidProfile
	}

	if session.ProfileUuid != "" && session.ProfileUuid != profileUuid {
		return InvalidProfile
	}

	player, err := a.Players.FindPlayerByUuid(ctx, profileUuid)
	if err != nil {
		return err
	}

	if player == nil || player.AccountId != session.AccountId {
		return InvalidProfile
	}

	session.ProfileUuid = player.Uuid
	session.State = db.StateJoined
	session.ServerId = serverId
	session.JoinedIp = ip
	session.JoinedAt = timeNow()

	return a.Store.SaveSession(ctx, session)
}

// HasJoined returns the player only when its session is joined to exactly this server
// within the join window. When both ips are known they must be equal.
func (a *Authority) HasJoined(ctx context.Context, playerName string, serverId string, ip string) (player *db.Player, err error) {
	defer func() {
		a.Emitter.Emit("sessions:has_joined", playerName, serverId, err)
		if errors.Is(err, NotJoined) {
			a.metrics.HasJoinedMissed.Add(ctx, 1)
		} else if err == nil {
			a.metrics.HasJoinedConfirmed.Add(ctx, 1)
		}
	}()

	if playerName == "" || serverId == "" {
		return nil, NotJoined
	}

	player, err = a.Players.FindPlayerByName(ctx, playerName)
	if err != nil {
		return nil, err
	}

	if player == nil {
		return nil, NotJoined
	}

	session, err := a.Store.FindJoinedSession(ctx, player.Uuid, serverId)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	if session == nil ||
		session.State != db.StateJoined ||
		session.IsExpired(now) ||
		session.AccountId != player.AccountId ||
		session.ProfileUuid != player.Uuid ||
		session.ServerId != serverId ||
		now.Sub(session.JoinedAt) > a.JoinTtl {
		return nil, NotJoined
	}

	if ip != "" && session.JoinedIp != "" && ip != session.JoinedIp {
		return nil, NotJoined
	}

	return player, nil
}

func (a *Authority) Validate(ctx context.Context, accessToken string, clientToken string) error {
	_, err := a.findActiveSession(ctx, accessToken, clientToken)

	return err
}

// Invalidate revokes the token. Unknown tokens are ignored.
func (a *Authority) Invalidate(ctx context.Context, accessToken string) error {
	session, err := a.Store.FindSession(ctx, accessToken)
	if err != nil || session == nil {
		return err
	}

	defer a.lockAccount(session.AccountId)()

	session, err = a.Store.FindSession(ctx, accessToken)
	if err != nil || session == nil || session.State == db.StateRevoked {
		return err
	}

	session.State = db.StateRevoked

	return a.Store.SaveSession(ctx, session)
}

// Signout revokes every session of the account after checking its credentials.
func (a *Authority) Signout(ctx context.Context, username string, password string) error {
	account, err := a.verifyCredentials(ctx, username, password)
	if err != nil {
		return err
	}

	defer a.lockAccount(account.Id)()

	return a.Store.RemoveSessionsByAccount(ctx, account.Id)
}

func (a *Authority) verifyCredentials(ctx context.Context, username string, password string) (*db.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, InvalidCredentials
	}

	account, err := a.Accounts.FindAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if account == nil {
		a.Passwords.Verify("", password)
		return nil, InvalidCredentials
	}

	if !a.Passwords.Verify(account.PasswordHash, password) {
		return nil, InvalidCredentials
	}

	return account, nil
}

func (a *Authority) lockAccount(accountId int64) (unlock func()) {
	mu := &a.locks[uint64(accountId)%locksCount]
	mu.Lock()

	return mu.Unlock
}

// lockSession returns the active session with its account locked. The session is read
// once more under the lock since a concurrent transition may have rotated it.
func (a *Authority) lockSession(ctx context.Context, accessToken string, clientToken string) (*db.Session, func(), error) {
	session, err := a.findActiveSession(ctx, accessToken, clientToken)
	if err != nil {
		return nil, nil, err
	}

	unlock := a.lockAccount(session.AccountId)
	session, err = a.findActiveSession(ctx, accessToken, clientToken)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	return session, unlock, nil
}

func (a *Authority) findActiveSession(ctx context.Context, accessToken string, clientToken string) (*db.Session, error) {
	if accessToken == "" {
		return nil, InvalidToken
	}

	session, err := a.Store.FindSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if session == nil || session.State == db.StateRevoked || session.IsExpired(timeNow()) {
		return nil, InvalidToken
	}

	if clientToken != "" && clientToken != session.ClientToken {
		return nil, InvalidToken
	}

	return session, nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newAuthorityMetrics(meter metric.Meter) (*authorityMetrics, error) {
	m := &authorityMetrics{}
	var errors, err error

	m.AuthenticationSucceeded, err = meter.Int64Counter(
		"sessions.authentication.success",
		metric.WithDescription("Number of issued access tokens"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.AuthenticationFailed, err = meter.Int64Counter(
		"sessions.authentication.failed",
		metric.WithDescription("Number of rejected credentials"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Refreshed, err = meter.Int64Counter(
		"sessions.refresh",
		metric.WithDescription("Number of rotated access tokens"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Joined, err = meter.Int64Counter(
		"sessions.join",
		metric.WithDescription("Number of successful server joins"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.HasJoinedConfirmed, err = meter.Int64Counter(
		"sessions.has_joined.confirmed",
		metric.WithDescription("Number of hasJoined checks that found a joined session"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.HasJoinedMissed, err = meter.Int64Counter(
		"sessions.has_joined.missed",
		metric.WithDescription("Number of hasJoined checks without a joined session"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	return m, errors
}

type authorityMetrics struct {
	AuthenticationSucceeded metric.Int64Counter
	AuthenticationFailed    metric.Int64Counter
	Refreshed               metric.Int64Counter
	Joined                  metric.Int64Counter
	HasJoinedConfirmed      metric.Int64Counter
	HasJoinedMissed         metric.Int64Counter
}
