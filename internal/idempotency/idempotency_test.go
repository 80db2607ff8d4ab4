package idempotency_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/integrations/internal/idempotency"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "order-42:fedex", idempotency.Key("order-42", "fedex"))
}

func TestMemoryStore_ReserveRelease(t *testing.T) {
	s := idempotency.NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "o1:dhl")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "o1:dhl")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Reserve(ctx, "o1:fedex")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Release(ctx, "o1:dhl"))
	ok, err = s.Reserve(ctx, "o1:dhl")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := idempotency.NewMemoryStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	ok, _ := s.Reserve(ctx, "o2:dhl")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		ok, _ := s.Reserve(ctx, "o2:dhl")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_ConcurrentReserveWinsOnce(t *testing.T) {
	s := idempotency.NewMemoryStore(time.Hour)
	defer s.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Reserve(context.Background(), "o3:royalmail"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := idempotency.NewRedisStoreWithClient(client, "", 0)
	defer s.Close()

	_, err := s.Reserve(context.Background(), "o4:dhl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserving o4:dhl")
}

func TestRedisStore_ReserveRelease(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := idempotency.NewRedisStore(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	key := idempotency.Key(uuid.NewString(), "dhl")
	ok, err := s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, key))
	ok, err = s.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Release(ctx, key))
}
