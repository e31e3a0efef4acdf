package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootcamp/internal/domain"
)

func newStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "test"), mr
}

func TestStore_CreateGetDelete(t *testing.T) {
	store, mr := newStoreTest(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, store.Create(ctx, domain.Session{
		Token:      "sid-1",
		IdentityID: "identity-1",
		UserAgent:  "cli/1.0",
		IP:         "127.0.0.1",
		ExpiresAt:  expires,
	}))
	assert.True(t, mr.Exists("test:session:sid-1"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("test:session:sid-1").Seconds(), 5)

	got, err := store.GetByToken(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sid-1", got.Token)
	assert.Equal(t, "identity-1", got.IdentityID)
	assert.Equal(t, "cli/1.0", got.UserAgent)
	assert.True(t, expires.Equal(got.ExpiresAt))
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, store.Delete(ctx, "sid-1"))
	require.NoError(t, store.Delete(ctx, "sid-1"))
	got, err = store.GetByToken(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SessionsExpireWithTTL(t *testing.T) {
	store, mr := newStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.Session{
		Token:      "sid-2",
		IdentityID: "identity-2",
		ExpiresAt:  time.Now().Add(time.Minute),
	}))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, store.DeleteExpired(ctx))

	got, err := store.GetByToken(ctx, "sid-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SkipsExpiredSessions(t *testing.T) {
	store, mr := newStoreTest(t)

	require.NoError(t, store.Create(context.Background(), domain.Session{
		Token:     "old",
		ExpiresAt: time.Now().Add(-time.Second),
	}))
	assert.False(t, mr.Exists("test:session:old"))
}

func TestStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewStore(rdb, "")

	_, err = store.GetByToken(context.Background(), "sid")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrRedisUnavailable)
}
