// Package memory is an in-process sessiontx.Store. It stands in for the
// replicated cache in tests and single-node deployments.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/sessiontx"
)

type entry[V any] struct {
	entity   V
	meta     map[string]string
	version  sessiontx.Version
	written  time.Time
	accessed time.Time
	lifespan time.Duration
	maxIdle  time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	if e.lifespan > 0 && !now.Before(e.written.Add(e.lifespan)) {
		return true
	}
	return e.maxIdle > 0 && !now.Before(e.accessed.Add(e.maxIdle))
}

// Options tune the memory store.
type Options struct {
	Name string           // required; reported as the cache name
	Now  func() time.Time // nil => time.Now
}

// Store keeps clones of entities; every read hands out a fresh Clone, so
// callers may mutate what they get.
type Store[K comparable, V sessiontx.Entity[V]] struct {
	name string
	now  func() time.Time
	m    *xsync.MapOf[K, entry[V]]
	seq  atomic.Uint64
}

func New[K comparable, V sessiontx.Entity[V]](opts Options) (*Store[K, V], error) {
	if opts.Name == "" {
		return nil, errors.New("memory: name is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store[K, V]{name: opts.Name, now: now, m: xsync.NewMapOf[K, entry[V]]()}, nil
}

func (s *Store[K, V]) Name() string { return s.name }

// Len counts live entries (expired ones may be included until next read).
func (s *Store[K, V]) Len() int { return s.m.Size() }

func (s *Store[K, V]) Get(_ context.Context, key K) (*sessiontx.Wrapper[V], error) {
	now := s.now()
	var out *sessiontx.Wrapper[V]
	s.m.Compute(key, func(old entry[V], loaded bool) (entry[V], bool) {
		if !loaded || old.expired(now) {
			return old, true
		}
		old.accessed = now
		out = s.wrap(old)
		return old, false
	})
	return out, nil
}

func (s *Store[K, V]) Put(_ context.Context, key K, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) error {
	s.m.Store(key, s.newEntry(w, exp))
	return nil
}

func (s *Store[K, V]) PutIfAbsent(_ context.Context, key K, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) (*sessiontx.Wrapper[V], error) {
	now := s.now()
	var existing *sessiontx.Wrapper[V]
	s.m.Compute(key, func(old entry[V], loaded bool) (entry[V], bool) {
		if loaded && !old.expired(now) {
			existing = s.wrap(old)
			return old, false
		}
		return s.newEntry(w, exp), false
	})
	return existing, nil
}

func (s *Store[K, V]) Replace(_ context.Context, key K, expected, next *sessiontx.Wrapper[V], exp sessiontx.Expiration) (bool, error) {
	now := s.now()
	replaced := false
	s.m.Compute(key, func(old entry[V], loaded bool) (entry[V], bool) {
		if !loaded || old.expired(now) {
			return old, true
		}
		if old.version != expected.Version {
			return old, false
		}
		replaced = true
		return s.newEntry(next, exp), false
	})
	return replaced, nil
}

func (s *Store[K, V]) Remove(_ context.Context, key K) error {
	s.m.Delete(key)
	return nil
}

func (s *Store[K, V]) newEntry(w *sessiontx.Wrapper[V], exp sessiontx.Expiration) entry[V] {
	now := s.now()
	meta := make(map[string]string, len(w.LocalMetadata))
	maps.Copy(meta, w.LocalMetadata)
	return entry[V]{
		entity:   w.Entity.Clone(),
		meta:     meta,
		version:  sessiontx.Version(s.seq.Add(1)),
		written:  now,
		accessed: now,
		lifespan: exp.Lifespan(),
		maxIdle:  exp.MaxIdle(),
	}
}

func (s *Store[K, V]) wrap(e entry[V]) *sessiontx.Wrapper[V] {
	meta := make(map[string]string, len(e.meta))
	maps.Copy(meta, e.meta)
	return &sessiontx.Wrapper[V]{Entity: e.entity.Clone(), Version: e.version, LocalMetadata: meta}
}
