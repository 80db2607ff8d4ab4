// Package idempotency guards side-effecting upstream calls against
// duplicate submission.
package idempotency

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is how long a reservation blocks a duplicate.
const DefaultTTL = 24 * time.Hour

// Store reserves keys. Reserve reports false when key is already held.
type Store interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Key builds the reservation key of a shipment.
func Key(orderID, provider string) string {
	return orderID + ":" + provider
}

// MemoryStore keeps reservations in process memory.
type MemoryStore struct {
	cache *ttlcache.Cache[string, struct{}]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose reservations expire after ttl.
// Call Close to stop its expiry loop.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()
	return &MemoryStore{cache: cache}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key string) (bool, error) {
	_, found := s.cache.GetOrSet(key, struct{}{})
	return !found, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() {
	s.cache.Stop()
}
