package yggdrasil

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var InvalidPlayerId = errors.New("the value is not a valid player id")

// PlayerId is the 128-bit player identifier. The protocol renders it unhyphenated
// in request and response fields and hyphenated inside the signed textures payload.
type PlayerId uuid.UUID

func NewPlayerId() PlayerId {
	return PlayerId(uuid.New())
}

// ParsePlayerId accepts only the two forms the protocol uses: 32 hex digits or the
// 8-4-4-4-12 hyphenated form. Both are case-insensitive.
func ParsePlayerId(value string) (PlayerId, error) {
	if len(value) != 32 && len(value) != 36 {
		return PlayerId{}, InvalidPlayerId
	}

	parsed, err := uuid.Parse(value)
	if err != nil {
		return PlayerId{}, errors.Join(InvalidPlayerId, err)
	}

	return PlayerId(parsed), nil
}

func MustParsePlayerId(value string) PlayerId {
	id, err := ParsePlayerId(value)
	if err != nil {
		panic(err)
	}

	return id
}

// Unsigned returns 32 lower-case hex digits
func (id PlayerId) Unsigned() string {
	return hex.EncodeToString(id[:])
}

// String returns the hyphenated lower-case form
func (id PlayerId) String() string {
	return uuid.UUID(id).String()
}

func (id PlayerId) IsZero() bool {
	return id == PlayerId{}
}

func Hyphenate(unsigned string) (string, error) {
	if len(unsigned) != 32 {
		return "", InvalidPlayerId
	}

	id, err := ParsePlayerId(unsigned)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func Unhyphenate(hyphenated string) (string, error) {
	if len(hyphenated) != 36 {
		return "", InvalidPlayerId
	}

	id, err := ParsePlayerId(hyphenated)
	if err != nil {
		return "", err
	}

	return id.Unsigned(), nil
}

// NormalizeUuid returns the unhyphenated lower-case form of any accepted input
// or an empty string when the input isn't a player id at all.
func NormalizeUuid(value string) string {
	id, err := ParsePlayerId(strings.TrimSpace(value))
	if err != nil {
		return ""
	}

	return id.Unsigned()
}
