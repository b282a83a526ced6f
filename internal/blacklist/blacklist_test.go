package blacklist

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBlacklist(t *testing.T) (*RedisBlacklist, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisBlacklist(rdb, "test:bl"), mr
}

func TestAdd_ThenIsBlacklisted(t *testing.T) {
	bl, mr := newTestBlacklist(t)
	ctx := context.Background()

	listed, err := bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, listed)

	added, err := bl.Add(ctx, "jti-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, added)

	listed, err = bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, listed)

	assert.True(t, mr.Exists("test:bl:jti-1"))
	ttl := mr.TTL("test:bl:jti-1")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestAdd_SecondAddReportsExisting(t *testing.T) {
	bl, _ := newTestBlacklist(t)
	ctx := context.Background()

	added, err := bl.Add(ctx, "jti-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, added)

	added, err = bl.Add(ctx, "jti-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestAdd_EntryExpiresWithToken(t *testing.T) {
	bl, mr := newTestBlacklist(t)
	ctx := context.Background()

	_, err := bl.Add(ctx, "jti-1", time.Now().Add(10*time.Second))
	require.NoError(t, err)

	mr.FastForward(11 * time.Second)

	listed, err := bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestAdd_PastExpiryKeepsMinimumTTL(t *testing.T) {
	bl, mr := newTestBlacklist(t)

	added, err := bl.Add(context.Background(), "jti-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, minEntryTTL, mr.TTL("test:bl:jti-1"))
}

func TestAdd_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	bl, _ := newTestBlacklist(t)
	ctx := context.Background()
	until := time.Now().Add(time.Hour)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := bl.Add(ctx, "jti-race", until)
			if err == nil && added {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRedisDown_WrapsUnavailable(t *testing.T) {
	bl, mr := newTestBlacklist(t)
	mr.Close()

	_, err := bl.Add(context.Background(), "jti-1", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = bl.IsBlacklisted(context.Background(), "jti-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
