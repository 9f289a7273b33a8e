// Package kv adapts a byte Provider (ristretto, bigcache) into a
// sessiontx.Store.
//
// Entries are framed by internal/wire: the header carries the version and
// expiry bookkeeping, the payload is the codec-encoded store.Record. Providers
// offer no compare-and-swap, so conditional writes are serialized by striped
// in-process locks: one Store must own a keyspace, and only processes sharing
// that Store see consistent CAS.
package kv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/sessiontx"
	c "github.com/unkn0wn-root/sessiontx/codec"
	gen "github.com/unkn0wn-root/sessiontx/genstore"
	"github.com/unkn0wn-root/sessiontx/internal/wire"
	pr "github.com/unkn0wn-root/sessiontx/provider"
	"github.com/unkn0wn-root/sessiontx/store"
)

const defaultStripes = 256

// Options configure a kv Store.
// Only Name and Provider are required.
type Options[K comparable, V any] struct {
	Name     string // cache name, also the key namespace
	Provider pr.Provider

	Codec    c.Codec[store.Record[V]] // nil => msgpack
	GenStore gen.GenStore             // nil => LocalGenStore without cleanup
	Key      store.KeyFunc[K]         // nil => store.DefaultKey
	Logger   sessiontx.Logger         // if nil, NopLogger is used
	Stripes  int                      // lock stripes; 0 => 256
	MaxEntry int                      // max payload bytes accepted on decode; 0 => unlimited
	Now      func() time.Time         // nil => time.Now
}

type Store[K comparable, V any] struct {
	name     string
	provider pr.Provider
	codec    c.Codec[store.Record[V]]
	gen      gen.GenStore
	key      store.KeyFunc[K]
	log      sessiontx.Logger
	now      func() time.Time
	locks    []sync.Mutex
}

func New[K comparable, V any](opts Options[K, V]) (*Store[K, V], error) {
	if opts.Name == "" {
		return nil, errors.New("kv: name is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("kv: provider is required")
	}

	s := &Store[K, V]{
		name:     opts.Name,
		provider: opts.Provider,
		codec:    opts.Codec,
		gen:      opts.GenStore,
		key:      opts.Key,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.codec == nil {
		s.codec = c.Msgpack[store.Record[V]]{}
	}
	if opts.MaxEntry > 0 {
		s.codec = c.Limit[store.Record[V]]{Inner: s.codec, MaxDecode: opts.MaxEntry}
	}
	if s.gen == nil {
		s.gen = gen.NewLocalGenStore(0, 0)
	}
	if s.key == nil {
		s.key = store.DefaultKey[K]
	}
	if s.log == nil {
		s.log = sessiontx.NopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	stripes := opts.Stripes
	if stripes <= 0 {
		stripes = defaultStripes
	}
	s.locks = make([]sync.Mutex, stripes)
	return s, nil
}

func (s *Store[K, V]) Name() string { return s.name }

func (s *Store[K, V]) Close(ctx context.Context) error {
	_ = s.gen.Close(ctx)
	return s.provider.Close(ctx)
}

func (s *Store[K, V]) Get(ctx context.Context, key K) (*sessiontx.Wrapper[V], error) {
	k := s.storageKey(key)
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()
	return s.load(ctx, k, true)
}

func (s *Store[K, V]) Put(ctx context.Context, key K, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) error {
	k := s.storageKey(key)
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()
	return s.write(ctx, k, w, exp)
}

func (s *Store[K, V]) PutIfAbsent(ctx context.Context, key K, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) (*sessiontx.Wrapper[V], error) {
	k := s.storageKey(key)
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.load(ctx, k, false)
	if err != nil || cur != nil {
		return cur, err
	}
	return nil, s.write(ctx, k, w, exp)
}

func (s *Store[K, V]) Replace(ctx context.Context, key K, expected, next *sessiontx.Wrapper[V], exp sessiontx.Expiration) (bool, error) {
	k := s.storageKey(key)
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()

	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	h, _, err := wire.DecodeEntry(raw)
	if err != nil || h.Expired(s.now().UnixMilli()) {
		_ = s.provider.Del(ctx, k)
		return false, nil
	}
	if sessiontx.Version(h.Version) != expected.Version {
		return false, nil
	}
	return true, s.write(ctx, k, next, exp)
}

func (s *Store[K, V]) Remove(ctx context.Context, key K) error {
	k := s.storageKey(key)
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()
	return s.provider.Del(ctx, k)
}

// load reads and decodes the entry at k; corrupt or expired entries are
// deleted and reported as a miss. Callers hold the stripe lock.
func (s *Store[K, V]) load(ctx context.Context, k string, touch bool) (*sessiontx.Wrapper[V], error) {
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, err
	}
	nowMs := s.now().UnixMilli()
	h, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		s.log.Warn("dropping corrupt entry", sessiontx.Fields{"key": k})
		_ = s.provider.Del(ctx, k) // self-heal
		return nil, nil
	}
	if h.Expired(nowMs) {
		_ = s.provider.Del(ctx, k)
		return nil, nil
	}
	rec, err := s.codec.Decode(payload)
	if err != nil {
		s.log.Warn("dropping undecodable entry", sessiontx.Fields{"key": k, "err": err})
		_ = s.provider.Del(ctx, k) // self-heal
		return nil, nil
	}
	if touch && h.MaxIdleMs > 0 {
		// providers hand back their own buffer (ristretto) so touch a copy
		b := append([]byte(nil), raw...)
		if err := wire.Touch(b, nowMs); err == nil {
			if _, err := s.provider.Set(ctx, k, b, int64(len(b)), remainingTTL(h, nowMs)); err != nil {
				s.log.Debug("idle touch failed", sessiontx.Fields{"key": k, "err": err})
			}
		}
	}
	return rec.Wrap(h.Version), nil
}

// write encodes w under a freshly allocated version. Callers hold the stripe lock.
func (s *Store[K, V]) write(ctx context.Context, k string, w *sessiontx.Wrapper[V], exp sessiontx.Expiration) error {
	payload, err := s.codec.Encode(store.FromWrapper(w))
	if err != nil {
		return err
	}
	v, err := s.gen.Bump(ctx, k)
	if err != nil {
		return err
	}
	nowMs := s.now().UnixMilli()
	h := wire.Header{
		Version:    v,
		WrittenMs:  nowMs,
		AccessedMs: nowMs,
		LifespanMs: exp.LifespanMs,
		MaxIdleMs:  exp.MaxIdleMs,
	}
	b := wire.EncodeEntry(h, payload)
	ok, err := s.provider.Set(ctx, k, b, int64(len(b)), remainingTTL(h, nowMs))
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrRejected
	}
	return nil
}

func (s *Store[K, V]) storageKey(key K) string { return "entity:" + s.name + ":" + s.key(key) }

func (s *Store[K, V]) lock(k string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(k)%uint64(len(s.locks))]
}

// remainingTTL is the provider TTL for an entry: whichever of lifespan and
// idle window ends first. 0 means no expiry.
func remainingTTL(h wire.Header, nowMs int64) time.Duration {
	var ttl int64
	if h.LifespanMs > 0 {
		ttl = h.WrittenMs + h.LifespanMs - nowMs
	}
	if h.MaxIdleMs > 0 && (ttl == 0 || h.MaxIdleMs < ttl) {
		ttl = h.MaxIdleMs
	}
	if ttl <= 0 {
		return 0
	}
	return time.Duration(ttl) * time.Millisecond
}
