package sessiontx

import "maps"

// Entity is the constraint for values managed by a transaction. V is normally a
// pointer type; tasks mutate it in place.
type Entity[V any] interface {
	RealmID() string
	// Clone returns a deep copy. Stores use it so every reader owns its value.
	Clone() V
}

// Version is an opaque token assigned by the Store on every successful write.
type Version uint64

// NoVersion asks the store to assign a fresh version on write.
const NoVersion Version = 0

// Wrapper pairs an entity with the version it was read at and local metadata.
// Local metadata travels with the entity inside the cluster but is never
// forwarded to a remote site.
type Wrapper[V any] struct {
	Entity        V
	Version       Version
	LocalMetadata map[string]string
}

// NewWrapper wraps a new entity that has never been written.
func NewWrapper[V any](entity V) *Wrapper[V] {
	return &Wrapper[V]{Entity: entity, LocalMetadata: map[string]string{}}
}

// WithNewVersion returns a wrapper sharing the same entity reference that asks
// the store for a new version. metadata is copied.
func (w *Wrapper[V]) WithNewVersion(metadata map[string]string) *Wrapper[V] {
	md := make(map[string]string, len(metadata))
	maps.Copy(md, metadata)
	return &Wrapper[V]{Entity: w.Entity, Version: NoVersion, LocalMetadata: md}
}
