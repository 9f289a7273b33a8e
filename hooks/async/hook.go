// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ConflictEvery: 10, // sample logs: ~every 10th lost CAS
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	engine, _ := sessiontx.New(sessiontx.Options[string, *session.UserSession]{
//	    Store: st,
//	    Hooks: hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/sessiontx"
)

// Hooks runs another Hooks on a small worker pool. Events that do not fit
// the queue are dropped; Dropped reports how many.
type Hooks struct {
	inner sessiontx.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped uint64
}

var _ sessiontx.Hooks = (*Hooks)(nil)

func New(inner sessiontx.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = sessiontx.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events raised after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		h.drop()
		return
	}
	select {
	case h.q <- f:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		h.drop()
	}
}

func (h *Hooks) drop() {
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
}

func (h *Hooks) ReplaceConflict(c, k string, n int)  { h.try(func() { h.inner.ReplaceConflict(c, k, n) }) }
func (h *Hooks) ReplaceAbandoned(c, k string, n int) { h.try(func() { h.inner.ReplaceAbandoned(c, k, n) }) }
func (h *Hooks) EntityVanished(c, k string)          { h.try(func() { h.inner.EntityVanished(c, k) }) }
func (h *Hooks) ForwardDropped(c, k string)          { h.try(func() { h.inner.ForwardDropped(c, k) }) }
func (h *Hooks) WriteFailed(c, k string, op sessiontx.Operation, err error) {
	h.try(func() { h.inner.WriteFailed(c, k, op, err) })
}
func (h *Hooks) CommitSettled(c string, writes, failed int, d time.Duration) {
	h.try(func() { h.inner.CommitSettled(c, writes, failed, d) })
}
