package memory

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/sessiontx"
	"github.com/unkn0wn-root/sessiontx/internal/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) sessiontx.Store[string, *storetest.Item] {
		s, err := New[string, *storetest.Item](Options{Name: "items", Now: clock.Now})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}

func TestNewRequiresName(t *testing.T) {
	if _, err := New[string, *storetest.Item](Options{}); err == nil {
		t.Fatalf("expected error without name")
	}
}

// Reads restart the idle window; an entry left alone past it is gone.
func TestMaxIdleRefreshedByReads(t *testing.T) {
	ctx := context.Background()
	clock := storetest.NewClock()
	s, _ := New[string, *storetest.Item](Options{Name: "items", Now: clock.Now})

	exp := sessiontx.Expiration{LifespanMs: sessiontx.NoExpiration, MaxIdleMs: 1000}
	if err := s.Put(ctx, "k", sessiontx.NewWrapper(&storetest.Item{Realm: "r"}), exp); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for i := 0; i < 3; i++ {
		clock.Advance(800 * time.Millisecond)
		if w, _ := s.Get(ctx, "k"); w == nil {
			t.Fatalf("read #%d: entry expired although it was read within max idle", i)
		}
	}
	clock.Advance(1500 * time.Millisecond)
	if w, _ := s.Get(ctx, "k"); w != nil {
		t.Fatalf("idle entry should be gone")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry should be dropped on read, len=%d", s.Len())
	}
}

// Replace must not resurrect an entry that expired under it.
func TestReplaceOnExpiredEntryFails(t *testing.T) {
	ctx := context.Background()
	clock := storetest.NewClock()
	s, _ := New[string, *storetest.Item](Options{Name: "items", Now: clock.Now})

	_ = s.Put(ctx, "k", sessiontx.NewWrapper(&storetest.Item{Realm: "r"}), sessiontx.Expiration{LifespanMs: 100})
	w, _ := s.Get(ctx, "k")
	clock.Advance(time.Second)
	ok, err := s.Replace(ctx, "k", w, w.WithNewVersion(nil), sessiontx.Expiration{})
	if err != nil || ok {
		t.Fatalf("replace on expired: ok=%v err=%v", ok, err)
	}
}
