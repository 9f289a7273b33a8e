package sessiontx

import "context"

// Store is the replicated cache a transaction commits into.
//
// Every read returns a value the caller owns (a fresh decode or a Clone) and
// every successful write assigns a new Version. Implementations must be safe
// for concurrent use.
type Store[K comparable, V any] interface {
	// Name identifies the cache in logs and remote envelopes.
	Name() string

	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, key K) (*Wrapper[V], error)

	// Put writes unconditionally.
	Put(ctx context.Context, key K, w *Wrapper[V], exp Expiration) error

	// PutIfAbsent writes only when the key is empty. It returns the existing
	// wrapper when the key was already present and (nil, nil) when it wrote.
	PutIfAbsent(ctx context.Context, key K, w *Wrapper[V], exp Expiration) (*Wrapper[V], error)

	// Replace writes next iff the stored version equals expected.Version.
	// A missing key reports false.
	Replace(ctx context.Context, key K, expected, next *Wrapper[V], exp Expiration) (bool, error)

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key K) error
}
