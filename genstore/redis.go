package genstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore keeps one hash per namespace, one field per storage key, so
// every process writing the namespace draws from the same sequences and they
// survive restarts. With a TTL the whole hash expires after the namespace
// sat idle that long; pick one well above the longest entry lifespan, since
// an expired hash restarts every sequence at 1.
type RedisGenStore struct {
	rdb  redis.UniversalClient
	hash string
	ttl  time.Duration
}

var _ GenStore = (*RedisGenStore)(nil)

func NewRedisGenStore(client redis.UniversalClient, namespace string) *RedisGenStore {
	return NewRedisGenStoreWithTTL(client, namespace, 0)
}

// NewRedisGenStoreWithTTL refreshes the namespace TTL on every bump; ttl <= 0
// keeps sequences forever.
func NewRedisGenStoreWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisGenStore {
	return &RedisGenStore{rdb: client, hash: "ver:{" + namespace + "}", ttl: ttl}
}

func (s *RedisGenStore) Bump(ctx context.Context, storageKey string) (uint64, error) {
	if s.ttl <= 0 {
		return s.rdb.HIncrBy(ctx, s.hash, storageKey, 1).Uint64()
	}
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, s.hash, storageKey, 1)
		p.PExpire(ctx, s.hash, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Uint64()
}

// Cleanup is a no-op; Redis expires the hash when a TTL is set.
func (s *RedisGenStore) Cleanup(time.Duration) {}

// Close leaves the shared client to its owner.
func (s *RedisGenStore) Close(context.Context) error { return nil }
