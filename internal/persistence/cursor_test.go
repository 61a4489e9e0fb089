package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gamification/internal/domain"
)

func TestCursorRoundtrip(t *testing.T) {
	cursor := &domain.Cursor{
		UnlockedAt: time.Date(2025, time.March, 10, 8, 15, 30, 123456789, time.UTC),
		Key:        "century_runner",
	}

	token := EncodeCursor(cursor)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, cursor.UnlockedAt.Equal(decoded.UnlockedAt))
	require.Equal(t, cursor.Key, decoded.Key)
}

func TestCursorTokenIsQuerySafe(t *testing.T) {
	cursor := &domain.Cursor{
		UnlockedAt: time.Date(2025, time.March, 10, 8, 0, 0, 999999999, time.UTC),
		Key:        "swift_five",
	}
	token := EncodeCursor(cursor)
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")
}

func TestEncodeCursorNil(t *testing.T) {
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorEmptyToken(t *testing.T) {
	cursor, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, cursor)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"not base64 at all!",
		"bm8gc2VwYXJhdG9y",     // decodes without a separator
		"bm90LWEtdGltZXxrZXk=", // bad timestamp
	} {
		_, err := DecodeCursor(token)
		require.Error(t, err, "token %q", token)
	}
}
