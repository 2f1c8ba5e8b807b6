package kv

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func Test_Denylist(t *testing.T) {
	t.Parallel()

	t.Run("added token is denied", func(t *testing.T) {
		_, client := newTestClient(t)
		d := NewDenylist(client)

		err := d.Add(t.Context(), "token-id", time.Minute)
		require.NoError(t, err)

		denied, err := d.IsDenied(t.Context(), "token-id")
		require.NoError(t, err)
		assert.True(t, denied)
	})

	t.Run("unknown token is not denied", func(t *testing.T) {
		_, client := newTestClient(t)
		d := NewDenylist(client)

		denied, err := d.IsDenied(t.Context(), "never-seen")
		require.NoError(t, err)
		assert.False(t, denied)
	})

	t.Run("entry expires with token lifetime", func(t *testing.T) {
		mr, client := newTestClient(t)
		d := NewDenylist(client)

		require.NoError(t, d.Add(t.Context(), "short-lived", time.Minute))
		mr.FastForward(2 * time.Minute)

		denied, err := d.IsDenied(t.Context(), "short-lived")
		require.NoError(t, err)
		assert.False(t, denied, "expired token needs no marker anymore")
	})

	t.Run("nothing stored for already expired token", func(t *testing.T) {
		_, client := newTestClient(t)
		d := NewDenylist(client)

		err := d.Add(t.Context(), "expired", -time.Minute)
		require.NoError(t, err)

		denied, err := d.IsDenied(t.Context(), "expired")
		require.NoError(t, err)
		assert.False(t, denied)
	})
}

func Test_HashRegistry(t *testing.T) {
	t.Parallel()

	t.Run("put and resolve", func(t *testing.T) {
		_, client := newTestClient(t)
		r := NewHashRegistry(client)

		require.NoError(t, r.Put(t.Context(), "deadbeef", 42))

		sessionID, err := r.Resolve(t.Context(), "deadbeef")
		require.NoError(t, err)
		assert.Equal(t, int64(42), sessionID)
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, client := newTestClient(t)
		r := NewHashRegistry(client)

		_, err := r.Resolve(t.Context(), "unknown")
		require.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("entries do not expire by default", func(t *testing.T) {
		mr, client := newTestClient(t)
		r := NewHashRegistry(client)

		require.NoError(t, r.Put(t.Context(), "longlived", 7))
		mr.FastForward(365 * 24 * time.Hour)

		sessionID, err := r.Resolve(t.Context(), "longlived")
		require.NoError(t, err)
		assert.Equal(t, int64(7), sessionID)
	})

	t.Run("list returns all entries", func(t *testing.T) {
		_, client := newTestClient(t)
		r := NewHashRegistry(client)

		require.NoError(t, r.Put(t.Context(), "hash-a", 1))
		require.NoError(t, r.Put(t.Context(), "hash-b", 2))
		require.NoError(t, r.Put(t.Context(), "hash-c", 2)) // re-activated session

		entries, err := r.List(t.Context())
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"hash-a": 1, "hash-b": 2, "hash-c": 2}, entries)
	})

	t.Run("delete session removes all its hashes", func(t *testing.T) {
		_, client := newTestClient(t)
		r := NewHashRegistry(client)

		require.NoError(t, r.Put(t.Context(), "hash-a", 1))
		require.NoError(t, r.Put(t.Context(), "hash-b", 2))
		require.NoError(t, r.Put(t.Context(), "hash-c", 2))

		require.NoError(t, r.DeleteSession(t.Context(), 2))

		entries, err := r.List(t.Context())
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"hash-a": 1}, entries)
	})
}

func Test_CodeStore(t *testing.T) {
	t.Parallel()

	t.Run("consume returns username once", func(t *testing.T) {
		_, client := newTestClient(t)
		s := NewCodeStore(client, 15*time.Minute)

		require.NoError(t, s.Put(t.Context(), "code-1", "alice"))

		username, err := s.Consume(t.Context(), "code-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", username)

		_, err = s.Consume(t.Context(), "code-1")
		require.ErrorIs(t, err, ErrKeyNotFound, "code must be single use")
	})

	t.Run("code expires", func(t *testing.T) {
		mr, client := newTestClient(t)
		s := NewCodeStore(client, 15*time.Minute)

		require.NoError(t, s.Put(t.Context(), "code-2", "bob"))
		mr.FastForward(16 * time.Minute)

		_, err := s.Consume(t.Context(), "code-2")
		require.ErrorIs(t, err, ErrKeyNotFound)
	})
}
