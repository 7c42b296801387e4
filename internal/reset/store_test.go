package reset_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradeauth/internal/reset"
	"gradeauth/internal/token"
)

// scriptedCodes returns a fixed sequence of codes, then falls back to
// repeating the last one.
type scriptedCodes struct {
	codes []string
	i     int
}

func (s *scriptedCodes) ResetCode() (string, error) {
	if s.i < len(s.codes)-1 {
		code := s.codes[s.i]
		s.i++
		return code, nil
	}
	return s.codes[len(s.codes)-1], nil
}

func newStore(t *testing.T) *reset.Store {
	t.Helper()
	s, err := reset.NewStore(token.NewGenerator(), nil)
	require.NoError(t, err)
	return s
}

func TestStore_GenerateDoesNotPersist(t *testing.T) {
	s, err := reset.NewStore(&scriptedCodes{codes: []string{"482913"}}, nil)
	require.NoError(t, err)

	code, err := s.Generate("bob")
	require.NoError(t, err)
	require.Equal(t, "482913", code)

	// never persisted, never consumable
	_, ok := s.Consume("482913")
	assert.False(t, ok)
}

func TestStore_PersistThenConsumeOnce(t *testing.T) {
	s := newStore(t)

	code, err := s.Generate("alice")
	require.NoError(t, err)
	require.NoError(t, s.Persist(code, "alice"))

	username, ok := s.Consume(code)
	require.True(t, ok)
	assert.Equal(t, "alice", username)

	_, ok = s.Consume(code)
	assert.False(t, ok, "a code is consumable exactly once")
}

func TestStore_IssueAndPersist(t *testing.T) {
	s := newStore(t)

	code, err := s.IssueAndPersist("carol")
	require.NoError(t, err)

	username, ok := s.Consume(code)
	require.True(t, ok)
	assert.Equal(t, "carol", username)
}

func TestStore_CollisionHandling(t *testing.T) {
	t.Run("generate redraws on collision", func(t *testing.T) {
		src := &scriptedCodes{codes: []string{"111111", "111111", "222222"}}
		s, err := reset.NewStore(src, nil)
		require.NoError(t, err)

		require.NoError(t, s.Persist("111111", "alice"))

		code, err := s.Generate("bob")
		require.NoError(t, err)
		assert.Equal(t, "222222", code)
	})

	t.Run("persist rejects a code held by another user", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Persist("333333", "alice"))

		err := s.Persist("333333", "bob")
		assert.ErrorIs(t, err, reset.ErrCodeCollision)

		// alice's mapping untouched
		username, ok := s.Consume("333333")
		require.True(t, ok)
		assert.Equal(t, "alice", username)
	})

	t.Run("re-persisting the same mapping is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Persist("444444", "alice"))
		require.NoError(t, s.Persist("444444", "alice"))
	})
}

func TestStore_InvalidateAllForUser(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Persist("111111", "alice"))
	require.NoError(t, s.Persist("222222", "alice"))
	require.NoError(t, s.Persist("333333", "bob"))

	s.InvalidateAllForUser("alice")

	_, ok := s.Consume("111111")
	assert.False(t, ok)
	_, ok = s.Consume("222222")
	assert.False(t, ok)

	username, ok := s.Consume("333333")
	require.True(t, ok)
	assert.Equal(t, "bob", username)
}

func TestFileSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	sink := reset.NewFileSink(path)

	t.Run("load before first save returns nothing", func(t *testing.T) {
		tokens, err := sink.Load()
		require.NoError(t, err)
		assert.Nil(t, tokens)
	})

	t.Run("save then load returns the mapping", func(t *testing.T) {
		require.NoError(t, sink.Save(map[string]string{
			"123456": "alice",
			"654321": "bob",
		}))

		tokens, err := sink.Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"123456": "alice",
			"654321": "bob",
		}, tokens)
	})
}

func TestStore_RestoresSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	sink := reset.NewFileSink(path)

	first, err := reset.NewStore(token.NewGenerator(), sink)
	require.NoError(t, err)
	require.NoError(t, first.Persist("987654", "alice"))

	// A fresh store over the same sink sees the persisted code.
	second, err := reset.NewStore(token.NewGenerator(), sink)
	require.NoError(t, err)

	username, ok := second.Consume("987654")
	require.True(t, ok)
	assert.Equal(t, "alice", username)
}

func TestStore_MutationsFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	sink := reset.NewFileSink(path)

	s, err := reset.NewStore(token.NewGenerator(), sink)
	require.NoError(t, err)

	require.NoError(t, s.Persist("111111", "alice"))
	_, ok := s.Consume("111111")
	require.True(t, ok)

	// Consume flushed the now-empty mapping.
	tokens, err := sink.Load()
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
