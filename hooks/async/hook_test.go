package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/sessiontx"
)

type recHooks struct {
	sessiontx.NopHooks
	mu     sync.Mutex
	events []string
	gate   chan struct{}
}

func (h *recHooks) record(ev string) {
	if h.gate != nil {
		<-h.gate
	}
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *recHooks) ReplaceConflict(_, k string, _ int)  { h.record("conflict:" + k) }
func (h *recHooks) ReplaceAbandoned(_, k string, _ int) { h.record("abandoned:" + k) }
func (h *recHooks) CommitSettled(c string, _, _ int, _ time.Duration) {
	h.record("settled:" + c)
}

func TestEventsReachInnerHooks(t *testing.T) {
	inner := &recHooks{}
	h := New(inner, 1, 16)
	h.ReplaceConflict("c", "k1", 1)
	h.ReplaceAbandoned("c", "k1", 25)
	h.CommitSettled("c", 1, 0, time.Millisecond)
	h.Close()

	want := []string{"conflict:k1", "abandoned:k1", "settled:c"}
	if len(inner.events) != len(want) {
		t.Fatalf("events=%v", inner.events)
	}
	for i := range want {
		if inner.events[i] != want[i] {
			t.Fatalf("events=%v want %v", inner.events, want)
		}
	}
}

func TestFullQueueDropsAndNeverBlocks(t *testing.T) {
	inner := &recHooks{gate: make(chan struct{})}
	h := New(inner, 1, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.ReplaceConflict("c", "k", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("hooks blocked the caller")
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker")
	}
	close(inner.gate)
	h.Close()

	before := h.Dropped()
	h.EntityVanished("c", "k")
	if h.Dropped() != before+1 {
		t.Fatalf("events after Close should be dropped")
	}
}
