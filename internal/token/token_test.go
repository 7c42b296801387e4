package token_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradeauth/internal/token"
)

func TestSessionToken(t *testing.T) {
	gen := token.NewGenerator()

	t.Run("fixed length opaque string", func(t *testing.T) {
		tok, err := gen.SessionToken()
		require.NoError(t, err)
		assert.Len(t, tok, 43) // 32 bytes base64url
	})

	t.Run("distinct across calls", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			tok, err := gen.SessionToken()
			require.NoError(t, err)
			assert.False(t, seen[tok], "token repeated")
			seen[tok] = true
		}
	})
}

func TestResetCode(t *testing.T) {
	gen := token.NewGenerator()

	t.Run("six decimal digits in range", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			code, err := gen.ResetCode()
			require.NoError(t, err)
			require.Len(t, code, 6)

			n, err := strconv.Atoi(code)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, 100000)
			assert.LessOrEqual(t, n, 999999)
		}
	})
}
