package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidispatch/internal/domain"
)

func setupMockRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	mr.SetTime(testNow)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStoreIncrementSetsCounterAndExpiry(t *testing.T) {
	mr, client := setupMockRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()
	ws := WindowStart(testNow.Unix())
	ttl := testNow.Unix() + 2*WindowSeconds

	require.NoError(t, store.Increment(ctx, "user-1", ws, ttl))
	require.NoError(t, store.Increment(ctx, "user-1", ws, ttl))

	w, err := store.Get(ctx, "user-1", ws)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 2, w.Operations)
	assert.Equal(t, ttl, w.TTL)
	assert.Equal(t, 2*time.Hour, mr.TTL(store.key("user-1", ws)))
}

func TestRedisStoreCreateIsConditional(t *testing.T) {
	_, client := setupMockRedis(t)
	store := NewRedisStore(client, "rl")
	ctx := context.Background()
	ws := WindowStart(testNow.Unix())

	require.NoError(t, store.Create(ctx, "user-1", ws, testNow.Unix()+7200))
	assert.ErrorIs(t, store.Create(ctx, "user-1", ws, testNow.Unix()+7200), ErrWindowExists)

	w, err := store.Get(ctx, "user-1", ws)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Operations)
}

func TestRedisStoreMissingWindow(t *testing.T) {
	_, client := setupMockRedis(t)
	w, err := NewRedisStore(client, "").Get(context.Background(), "nobody", 0)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestRedisStoreExpires(t *testing.T) {
	mr, client := setupMockRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()
	ws := WindowStart(testNow.Unix())
	require.NoError(t, store.Increment(ctx, "user-1", ws, testNow.Unix()+2*WindowSeconds))

	mr.FastForward(2*time.Hour + time.Second)

	w, err := store.Get(ctx, "user-1", ws)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestLimiterWithRedisStore(t *testing.T) {
	_, client := setupMockRedis(t)
	c := &clock{now: testNow}
	l := newLimiter(t, NewRedisStore(client, ""), c, domain.FailOpen, nil)

	for i := 0; i < DefaultCeiling; i++ {
		require.NoError(t, l.Check(context.Background(), "user-1"))
	}
	err := l.Check(context.Background(), "user-1")
	require.True(t, domain.IsRateLimitError(err), "expected rate limit error, got %v", err)

	require.NoError(t, l.Reset(context.Background(), "user-1"))
	assert.NoError(t, l.Check(context.Background(), "user-1"))
}

func TestLimiterFailsOpenWhenRedisDown(t *testing.T) {
	mr, client := setupMockRedis(t)
	c := &clock{now: testNow}
	l := newLimiter(t, NewRedisStore(client, ""), c, domain.FailOpen, nil)
	mr.Close()

	assert.NoError(t, l.Check(context.Background(), "user-1"))
}

func TestLimiterFailsClosedWhenRedisDown(t *testing.T) {
	mr, client := setupMockRedis(t)
	c := &clock{now: testNow}
	l := newLimiter(t, NewRedisStore(client, ""), c, domain.FailClosed, nil)
	mr.Close()

	assert.Error(t, l.Check(context.Background(), "user-1"))
}
