package yggdrasil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePlayerId(t *testing.T) {
	t.Run("unhyphenated", func(t *testing.T) {
		id, err := ParsePlayerId("0f657aa8bfbe415db7005750090d3af3")
		require.NoError(t, err)
		require.Equal(t, "0f657aa8bfbe415db7005750090d3af3", id.Unsigned())
		require.Equal(t, "0f657aa8-bfbe-415d-b700-5750090d3af3", id.String())
	})

	t.Run("hyphenated upper case", func(t *testing.T) {
		id, err := ParsePlayerId("0F657AA8-BFBE-415D-B700-5750090D3AF3")
		require.NoError(t, err)
		require.Equal(t, "0f657aa8bfbe415db7005750090d3af3", id.Unsigned())
	})

	for _, value := range []string{
		"",
		"0f657aa8",
		"urn:uuid:0f657aa8-bfbe-415d-b700-5750090d3af3",
		"{0f657aa8-bfbe-415d-b700-5750090d3af3}",
		"zf657aa8bfbe415db7005750090d3af3",
	} {
		t.Run("invalid "+value, func(t *testing.T) {
			_, err := ParsePlayerId(value)
			require.ErrorIs(t, err, InvalidPlayerId)
		})
	}
}

func TestHyphenateRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewPlayerId()

		hyphenated, err := Hyphenate(id.Unsigned())
		require.NoError(t, err)
		require.Equal(t, id.String(), hyphenated)

		unsigned, err := Unhyphenate(hyphenated)
		require.NoError(t, err)
		require.Equal(t, id.Unsigned(), unsigned)

		back, err := Hyphenate(unsigned)
		require.NoError(t, err)
		require.Equal(t, hyphenated, back)
	}

	t.Run("wrong form", func(t *testing.T) {
		_, err := Hyphenate("0f657aa8-bfbe-415d-b700-5750090d3af3")
		require.ErrorIs(t, err, InvalidPlayerId)

		_, err = Unhyphenate("0f657aa8bfbe415db7005750090d3af3")
		require.ErrorIs(t, err, InvalidPlayerId)
	})
}

func TestNormalizeUuid(t *testing.T) {
	require.Equal(t, "0f657aa8bfbe415db7005750090d3af3", NormalizeUuid("0F657AA8-BFBE-415D-B700-5750090D3AF3"))
	require.Equal(t, "", NormalizeUuid("not uuid"))
}
