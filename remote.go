package sessiontx

import "context"

// RemoteInvoker forwards a settled write to a secondary site.
// Forward is called once per key after its cluster write completed or was
// abandoned. Implementations MUST NOT block; the remote connector owns its
// own delivery and retry policy.
type RemoteInvoker[K comparable, V any] interface {
	Forward(ctx context.Context, realm *Realm, cacheName string, key K, update *MergedUpdate[V], w *Wrapper[V])
}

// NopRemote forwards nothing (single-site deployments).
type NopRemote[K comparable, V any] struct{}

func (NopRemote[K, V]) Forward(context.Context, *Realm, string, K, *MergedUpdate[V], *Wrapper[V]) {}
