package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technotrac/authcore/internal/auth"
	"github.com/technotrac/authcore/internal/domain"
)

func testKey(fill string) []byte {
	return []byte(strings.Repeat(fill, auth.MinSigningKeyLength))
}

func TestNewKeyRing(t *testing.T) {
	t.Run("first key signs", func(t *testing.T) {
		ring, err := auth.NewKeyRing(testKey("a"), testKey("b"))
		require.NoError(t, err)

		assert.Len(t, ring.Keys(), 2)
		assert.Equal(t, ring.Keys()[0], ring.Signing())
		assert.NotEqual(t, ring.Keys()[0].ID, ring.Keys()[1].ID)
		assert.Len(t, ring.Signing().ID, 8)
	})

	t.Run("empty ring is rejected", func(t *testing.T) {
		_, err := auth.NewKeyRing()
		assert.ErrorIs(t, err, auth.ErrNoSigningKeys)

		_, err = auth.NewKeyRingFromStrings(nil)
		assert.ErrorIs(t, err, auth.ErrNoSigningKeys)
	})

	t.Run("short key is rejected", func(t *testing.T) {
		_, err := auth.NewKeyRingFromStrings([]string{"short"})
		assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	})

	t.Run("secret does not leak through fmt", func(t *testing.T) {
		ring, err := auth.NewKeyRing(testKey("z"))
		require.NoError(t, err)
		assert.Equal(t, "[REDACTED]", ring.Signing().Secret.String())
	})
}

func TestGenerateEphemeralKey(t *testing.T) {
	a, err := auth.GenerateEphemeralKey()
	require.NoError(t, err)
	b, err := auth.GenerateEphemeralKey()
	require.NoError(t, err)

	assert.Len(t, a, auth.MinSigningKeyLength)
	assert.NotEqual(t, a, b)

	_, err = auth.NewKeyRing(a, b)
	assert.NoError(t, err)
}
