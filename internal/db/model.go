package db

import (
	"errors"
	"time"
)

var TextureInUse = errors.New("the texture is assigned to at least one player")

type Account struct {
	Id int64
	// Uuid contains account's UUID without dashes in lower case
	Uuid     string
	Username string
	// PasswordHash is an opaque credential produced by the password hasher
	PasswordHash string
}

type Player struct {
	Id        int64
	AccountId int64
	// Uuid contains player's UUID without dashes in lower case
	Uuid string
	// Name contains player's name with the original casing
	Name string
	// SkinTextureId is 0 when the player has no active skin
	SkinTextureId int64
	// CapeTextureId is 0 when the player has no active cape
	CapeTextureId int64
}

type TextureKind string

const (
	KindSkin TextureKind = "skin"
	KindCape TextureKind = "cape"
)

type Texture struct {
	Id int64
	// Hash is the hex encoded sha256 of the image bytes
	Hash      string
	Kind      TextureKind
	Path      string
	Width     int
	Height    int
	Model     string
	AccountId int64
}

type SessionState int

const (
	StateAuthenticated SessionState = iota + 1
	StateJoined
	StateRevoked
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

type Session struct {
	AccessToken string
	ClientToken string
	AccountId   int64
	// ProfileUuid contains selected player's UUID without dashes or an empty string
	ProfileUuid string
	State       SessionState
	ServerId    string
	JoinedIp    string
	JoinedAt    time.Time
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
