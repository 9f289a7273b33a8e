// Package genstore hands out entry versions for byte-oriented stores.
package genstore

import (
	"context"
	"time"
)

// GenStore allocates versions per storage key. Versions for a key only grow,
// so a wrapper read before a write never matches the entry written after it.
// LocalGenStore serves one process; RedisGenStore shares sequences between
// processes and across restarts.
type GenStore interface {
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup forgets sequences idle longer than retention, where the
	// implementation tracks them itself.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
