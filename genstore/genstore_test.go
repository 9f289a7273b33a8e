package genstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLocalBumpIsPerKeyAndMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for want := uint64(1); want <= 3; want++ {
		got, err := s.Bump(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("a: got %d want %d", got, want)
		}
	}
	if got, _ := s.Bump(ctx, "b"); got != 1 {
		t.Fatalf("b: got %d want 1", got)
	}
}

func TestLocalCleanupNeverRepeatsVersions(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for i := 0; i < 5; i++ {
		if _, err := s.Bump(ctx, "old"); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(20 * time.Millisecond)
	s.Cleanup(10 * time.Millisecond)
	if n := s.Len(); n != 0 {
		t.Fatalf("stale sequence not pruned, %d left", n)
	}

	got, err := s.Bump(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if got <= 5 {
		t.Fatalf("version repeated after cleanup: %d", got)
	}
	if fresh, _ := s.Bump(ctx, "fresh"); fresh <= 5 {
		t.Fatalf("new key must start above the pruned floor, got %d", fresh)
	}
}

func TestRedisBumpSharedAcrossStores(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	a := NewRedisGenStore(rdb, "sessions")
	b := NewRedisGenStoreWithTTL(rdb, "sessions", time.Hour)

	if v, err := a.Bump(ctx, "k"); err != nil || v != 1 {
		t.Fatalf("a.Bump: v=%d err=%v", v, err)
	}
	if v, err := b.Bump(ctx, "k"); err != nil || v != 2 {
		t.Fatalf("b.Bump: v=%d err=%v", v, err)
	}
	if ttl := mr.TTL("ver:{sessions}"); ttl <= 0 {
		t.Fatalf("expected ttl on sequence hash, got %v", ttl)
	}
	if v, _ := a.Bump(ctx, "other"); v != 1 {
		t.Fatalf("sequences are per storage key, got %d", v)
	}
}
