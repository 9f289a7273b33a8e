package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/sessiontx"
	c "github.com/unkn0wn-root/sessiontx/codec"
	gen "github.com/unkn0wn-root/sessiontx/genstore"
	"github.com/unkn0wn-root/sessiontx/internal/storetest"
	"github.com/unkn0wn-root/sessiontx/internal/wire"
	pr "github.com/unkn0wn-root/sessiontx/provider"
	"github.com/unkn0wn-root/sessiontx/provider/bigcache"
	"github.com/unkn0wn-root/sessiontx/provider/ristretto"
	"github.com/unkn0wn-root/sessiontx/store"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu     sync.Mutex
	m      map[string]memEntry
	reject bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func newTestStore(t *testing.T, p pr.Provider, clock *storetest.Clock, optsOpt func(*Options[string, *storetest.Item])) *Store[string, *storetest.Item] {
	t.Helper()
	opts := Options[string, *storetest.Item]{Name: "items", Provider: p, Now: clock.Now}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStoreContractMemProvider(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		return newTestStore(t, newMemProvider(), clock, nil)
	})
}

func TestStoreContractJSONCodec(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		return newTestStore(t, newMemProvider(), clock, func(o *Options[string, *storetest.Item]) {
			o.Codec = c.JSON[store.Record[*storetest.Item]]{}
		})
	})
}

func TestStoreContractCBORCodec(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		return newTestStore(t, newMemProvider(), clock, func(o *Options[string, *storetest.Item]) {
			o.Codec = c.MustCBOR[store.Record[*storetest.Item]]()
		})
	})
}

func TestStoreContractRistretto(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		p, err := ristretto.New(ristretto.Config{NumCounters: 1e4, MaxCost: 1 << 24, BufferItems: 64})
		if err != nil {
			t.Fatalf("ristretto: %v", err)
		}
		return newTestStore(t, p, clock, nil)
	})
}

func TestStoreContractBigcache(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		p, err := bigcache.New(context.Background(), bigcache.Config{LifeWindow: time.Hour, Shards: 16, MaxEntriesInWindow: 1000, MaxEntrySize: 256})
		if err != nil {
			t.Fatalf("bigcache: %v", err)
		}
		return newTestStore(t, p, clock, nil)
	})
}

// The contract holds with versions drawn from a Redis sequence.
func TestStoreContractRedisGenStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		mr := miniredis.RunT(t)
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return newTestStore(t, newMemProvider(), clock, func(o *Options[string, *storetest.Item]) {
			o.GenStore = gen.NewRedisGenStoreWithTTL(rdb, "items", time.Hour)
		})
	})
}

// TestSelfHealOnCorrupt ensures corrupt provider bytes are deleted and read
// as a miss.
func TestSelfHealOnCorrupt(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStore(t, mp, storetest.NewClock(), nil)

	k := s.storageKey("bad")
	if ok, err := mp.Set(ctx, k, []byte("not-wire-format"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("inject corrupt: ok=%v err=%v", ok, err)
	}
	if w, err := s.Get(ctx, "bad"); err != nil || w != nil {
		t.Fatalf("Get on corrupt should miss, w=%v err=%v", w, err)
	}
	if _, ok, _ := mp.Get(ctx, k); ok {
		t.Fatalf("corrupt entry was not deleted by self-heal")
	}

	// a valid frame whose payload does not decode is dropped as well
	b := wire.EncodeEntry(wire.Header{Version: 1}, []byte{0xc1})
	_, _ = mp.Set(ctx, k, b, 1, time.Minute)
	if w, err := s.Get(ctx, "bad"); err != nil || w != nil {
		t.Fatalf("Get on undecodable payload should miss, w=%v err=%v", w, err)
	}
	if _, ok, _ := mp.Get(ctx, k); ok {
		t.Fatalf("undecodable entry was not deleted by self-heal")
	}
}

func TestIdleTouchExtendsEntry(t *testing.T) {
	ctx := context.Background()
	clock := storetest.NewClock()
	mp := newMemProvider()
	s := newTestStore(t, mp, clock, nil)

	exp := sessiontx.Expiration{LifespanMs: sessiontx.NoExpiration, MaxIdleMs: 1000}
	if err := s.Put(ctx, "k", sessiontx.NewWrapper(&storetest.Item{Realm: "r"}), exp); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(800 * time.Millisecond)
	if w, _ := s.Get(ctx, "k"); w == nil {
		t.Fatalf("entry expired early")
	}
	clock.Advance(800 * time.Millisecond)
	if w, _ := s.Get(ctx, "k"); w == nil {
		t.Fatalf("read should have restarted the idle window")
	}

	raw, ok, _ := mp.Get(ctx, s.storageKey("k"))
	if !ok {
		t.Fatalf("entry missing from provider")
	}
	h, _, err := wire.DecodeEntry(raw)
	if err != nil || h.AccessedMs != clock.Now().UnixMilli() {
		t.Fatalf("accessed=%d want %d err=%v", h.AccessedMs, clock.Now().UnixMilli(), err)
	}

	clock.Advance(2 * time.Second)
	if w, _ := s.Get(ctx, "k"); w != nil {
		t.Fatalf("idle entry should be gone")
	}
}

func TestRejectedWriteIsAnError(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.reject = true
	s := newTestStore(t, mp, storetest.NewClock(), nil)

	err := s.Put(ctx, "k", sessiontx.NewWrapper(&storetest.Item{Realm: "r"}), sessiontx.Expiration{})
	if !errors.Is(err, store.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestMaxEntryRejectsOversizedPayload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newMemProvider(), storetest.NewClock(), func(o *Options[string, *storetest.Item]) {
		o.MaxEntry = 16
	})
	big := &storetest.Item{Realm: "r", Name: string(make([]byte, 64))}
	if err := s.Put(ctx, "k", sessiontx.NewWrapper(big), sessiontx.Expiration{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if w, err := s.Get(ctx, "k"); err != nil || w != nil {
		t.Fatalf("oversized entry should read as a miss, w=%v err=%v", w, err)
	}
}

func TestRemainingTTL(t *testing.T) {
	cases := []struct {
		h    wire.Header
		now  int64
		want time.Duration
	}{
		{wire.Header{}, 0, 0},
		{wire.Header{WrittenMs: 0, LifespanMs: 1000}, 400, 600 * time.Millisecond},
		{wire.Header{WrittenMs: 0, LifespanMs: 1000, MaxIdleMs: 200}, 400, 200 * time.Millisecond},
		{wire.Header{MaxIdleMs: 300}, 10, 300 * time.Millisecond},
		{wire.Header{LifespanMs: 100}, 500, 0},
	}
	for i, tc := range cases {
		if got := remainingTTL(tc.h, tc.now); got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}
}
