// Package store holds what the byte-oriented sessiontx stores share: the
// record layout and key rendering. Implementations live in subpackages.
package store

import (
	"errors"
	"fmt"
	"maps"

	"github.com/unkn0wn-root/sessiontx"
)

// ErrRejected is returned when the backing store refused a write (eviction
// pressure, admission policy).
var ErrRejected = errors.New("store: write rejected by provider")

// Record is the serialized form of a wrapper. The version travels outside the
// payload (wire header or hash field) so it can be compared without decoding.
type Record[V any] struct {
	Entity   V                 `msgpack:"e" json:"e" cbor:"1,keyasint"`
	Metadata map[string]string `msgpack:"m,omitempty" json:"m,omitempty" cbor:"2,keyasint,omitempty"`
}

// FromWrapper copies w's entity reference and metadata into a Record.
func FromWrapper[V any](w *sessiontx.Wrapper[V]) Record[V] {
	return Record[V]{Entity: w.Entity, Metadata: w.LocalMetadata}
}

// Wrap turns a decoded record into a wrapper at version v.
func (r Record[V]) Wrap(v uint64) *sessiontx.Wrapper[V] {
	md := make(map[string]string, len(r.Metadata))
	maps.Copy(md, r.Metadata)
	return &sessiontx.Wrapper[V]{Entity: r.Entity, Version: sessiontx.Version(v), LocalMetadata: md}
}

// KeyFunc renders a key into the string a byte store indexes by.
type KeyFunc[K comparable] func(K) string

// DefaultKey uses the string itself, a fmt.Stringer, or fmt.Sprint.
func DefaultKey[K comparable](k K) string {
	switch v := any(k).(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(k)
	}
}
