// Package storetest checks a sessiontx.Store implementation against the
// behavior the transaction engine relies on.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/sessiontx"
)

// Item is the entity the suite stores.
type Item struct {
	Realm string            `msgpack:"realm" json:"realm" cbor:"1,keyasint"`
	Name  string            `msgpack:"name" json:"name" cbor:"2,keyasint"`
	N     int               `msgpack:"n" json:"n" cbor:"3,keyasint"`
	Tags  map[string]string `msgpack:"tags,omitempty" json:"tags,omitempty" cbor:"4,keyasint,omitempty"`
}

func (i *Item) RealmID() string { return i.Realm }

func (i *Item) Clone() *Item {
	c := *i
	if i.Tags != nil {
		c.Tags = make(map[string]string, len(i.Tags))
		for k, v := range i.Tags {
			c.Tags[k] = v
		}
	}
	return &c
}

// Clock is a manual clock for stores that take a Now option.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock { return &Clock{now: time.Unix(1_700_000_000, 0)} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory builds an empty store reading time from clock.
type Factory func(t *testing.T, clock *Clock) sessiontx.Store[string, *Item]

// Run exercises the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("Miss", func(t *testing.T) { testMiss(t, newStore) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newStore) })
	t.Run("PutIfAbsent", func(t *testing.T) { testPutIfAbsent(t, newStore) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newStore) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newStore) })
	t.Run("Lifespan", func(t *testing.T) { testLifespan(t, newStore) })
}

func testMiss(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())
	w, err := s.Get(ctx, "missing")
	if err != nil || w != nil {
		t.Fatalf("miss: w=%v err=%v", w, err)
	}
	ok, err := s.Replace(ctx, "missing", &sessiontx.Wrapper[*Item]{Entity: &Item{}, Version: 1}, sessiontx.NewWrapper(&Item{}), sessiontx.Expiration{})
	if err != nil || ok {
		t.Fatalf("replace on miss: ok=%v err=%v", ok, err)
	}
}

func testPutGet(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	w := sessiontx.NewWrapper(&Item{Realm: "r", Name: "a", N: 1, Tags: map[string]string{"x": "y"}})
	w.LocalMetadata["node"] = "n1"
	if err := s.Put(ctx, "k", w, sessiontx.Expiration{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || got == nil {
		t.Fatalf("Get: w=%v err=%v", got, err)
	}
	if got.Entity.Name != "a" || got.Entity.N != 1 || got.Entity.Tags["x"] != "y" {
		t.Fatalf("unexpected entity %+v", got.Entity)
	}
	if got.Version == sessiontx.NoVersion {
		t.Fatalf("store must assign a version")
	}
	if got.LocalMetadata["node"] != "n1" {
		t.Fatalf("metadata lost: %v", got.LocalMetadata)
	}

	// readers own what they get
	got.Entity.N = 99
	got.Entity.Tags["x"] = "changed"
	again, _ := s.Get(ctx, "k")
	if again.Entity.N != 1 || again.Entity.Tags["x"] != "y" {
		t.Fatalf("store value was mutated through a read: %+v", again.Entity)
	}

	if err := s.Put(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r", N: 2}), sessiontx.Expiration{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	next, _ := s.Get(ctx, "k")
	if next.Entity.N != 2 || next.Version == again.Version {
		t.Fatalf("overwrite: entity=%+v version %d -> %d", next.Entity, again.Version, next.Version)
	}
}

func testPutIfAbsent(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	existing, err := s.PutIfAbsent(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r", Name: "first"}), sessiontx.Expiration{})
	if err != nil || existing != nil {
		t.Fatalf("first PutIfAbsent: existing=%v err=%v", existing, err)
	}
	existing, err = s.PutIfAbsent(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r", Name: "second"}), sessiontx.Expiration{})
	if err != nil || existing == nil {
		t.Fatalf("second PutIfAbsent: existing=%v err=%v", existing, err)
	}
	if existing.Entity.Name != "first" || existing.Version == sessiontx.NoVersion {
		t.Fatalf("expected the first entity back, got %+v v=%d", existing.Entity, existing.Version)
	}
	cur, _ := s.Get(ctx, "k")
	if cur.Entity.Name != "first" || cur.Version != existing.Version {
		t.Fatalf("PutIfAbsent overwrote: %+v", cur.Entity)
	}
}

func testReplace(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	if err := s.Put(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r", N: 1}), sessiontx.Expiration{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v1, _ := s.Get(ctx, "k")

	next := v1.WithNewVersion(v1.LocalMetadata)
	next.Entity.N = 2
	ok, err := s.Replace(ctx, "k", v1, next, sessiontx.Expiration{})
	if err != nil || !ok {
		t.Fatalf("Replace at current version: ok=%v err=%v", ok, err)
	}
	v2, _ := s.Get(ctx, "k")
	if v2.Entity.N != 2 || v2.Version == v1.Version {
		t.Fatalf("after replace: %+v v=%d (was %d)", v2.Entity, v2.Version, v1.Version)
	}

	stale := v1.WithNewVersion(nil)
	stale.Entity = &Item{Realm: "r", N: 3}
	ok, err = s.Replace(ctx, "k", v1, stale, sessiontx.Expiration{})
	if err != nil || ok {
		t.Fatalf("Replace at stale version: ok=%v err=%v", ok, err)
	}
	if cur, _ := s.Get(ctx, "k"); cur.Entity.N != 2 {
		t.Fatalf("stale replace landed: %+v", cur.Entity)
	}
}

func testRemove(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t, NewClock())

	if err := s.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
	_ = s.Put(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r"}), sessiontx.Expiration{})
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if w, err := s.Get(ctx, "k"); err != nil || w != nil {
		t.Fatalf("after remove: w=%v err=%v", w, err)
	}
}

func testLifespan(t *testing.T, newStore Factory) {
	ctx := context.Background()
	clock := NewClock()
	s := newStore(t, clock)

	exp := sessiontx.Expiration{LifespanMs: 1000, MaxIdleMs: sessiontx.NoExpiration}
	if err := s.Put(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r"}), exp); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(500 * time.Millisecond)
	if w, _ := s.Get(ctx, "k"); w == nil {
		t.Fatalf("entry expired early")
	}
	clock.Advance(600 * time.Millisecond)
	if w, err := s.Get(ctx, "k"); err != nil || w != nil {
		t.Fatalf("entry outlived its lifespan: w=%v err=%v", w, err)
	}
	// an expired key counts as absent
	existing, err := s.PutIfAbsent(ctx, "k", sessiontx.NewWrapper(&Item{Realm: "r", Name: "new"}), sessiontx.Expiration{})
	if err != nil || existing != nil {
		t.Fatalf("PutIfAbsent over expired: existing=%v err=%v", existing, err)
	}
}
