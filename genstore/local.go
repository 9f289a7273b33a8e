package genstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type seq struct {
	n       uint64
	touched int64 // unix nanos of the last bump
}

// LocalGenStore keeps versions in-process.
// Sequences untouched for longer than the retention are pruned; the highest
// pruned version becomes a floor for every new sequence so a version handed
// out once is never handed out again.
type LocalGenStore struct {
	seqs  *xsync.MapOf[string, seq]
	floor atomic.Uint64
	now   func() time.Time

	stop chan struct{}
	once sync.Once
	done sync.WaitGroup
}

var _ GenStore = (*LocalGenStore)(nil)

// NewLocalGenStore prunes every interval when both arguments are positive.
// Pass zeros for a store that only prunes on explicit Cleanup calls.
func NewLocalGenStore(interval, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{seqs: xsync.NewMapOf[string, seq](), now: time.Now}
	if interval <= 0 || retention <= 0 {
		return s
	}
	s.stop = make(chan struct{})
	s.done.Add(1)
	go s.prune(interval, retention)
	return s
}

func (s *LocalGenStore) prune(interval, retention time.Duration) {
	defer s.done.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retention)
		case <-s.stop:
			return
		}
	}
}

func (s *LocalGenStore) Bump(_ context.Context, k string) (uint64, error) {
	at := s.now().UnixNano()
	v, _ := s.seqs.Compute(k, func(cur seq, loaded bool) (seq, bool) {
		if !loaded {
			cur.n = s.floor.Load()
		}
		return seq{n: cur.n + 1, touched: at}, false
	})
	return v.n, nil
}

func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention).UnixNano()
	s.seqs.Range(func(k string, v seq) bool {
		if v.touched >= cutoff {
			return true
		}
		// recheck under the key's lock; a Bump may have landed since Range read it
		s.seqs.Compute(k, func(cur seq, loaded bool) (seq, bool) {
			if !loaded || cur.touched >= cutoff {
				return cur, !loaded
			}
			s.raiseFloor(cur.n)
			return cur, true
		})
		return true
	})
}

func (s *LocalGenStore) raiseFloor(n uint64) {
	for {
		f := s.floor.Load()
		if n <= f || s.floor.CompareAndSwap(f, n) {
			return
		}
	}
}

// Len reports how many sequences are tracked.
func (s *LocalGenStore) Len() int { return s.seqs.Size() }

func (s *LocalGenStore) Close(_ context.Context) error {
	if s.stop != nil {
		s.once.Do(func() { close(s.stop) })
		s.done.Wait()
	}
	return nil
}
