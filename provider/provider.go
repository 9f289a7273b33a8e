// Package provider defines the byte caches the kv store runs on.
//
// A provider only moves opaque bytes. The kv store frames each entity with
// its version and deadlines, so anything a provider hands back that does not
// parse is dropped and read as a miss. Keys under "entity:<cache>:" belong to
// the kv store.
package provider

import (
	"context"
	"time"
)

// Provider is a concurrency-safe byte cache. A Set must be readable by the
// next Get on the same key from the same process, because conditional writes
// read the entry they are about to overwrite.
type Provider interface {
	// Get reports found=false on a miss. A non-nil error means the read failed,
	// not that the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set writes value. ttl <= 0 keeps it until evicted; cost feeds
	// cost-aware caches and may be ignored. ok=false means the cache
	// declined the write, e.g. an admission policy under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del is idempotent; deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
