package sessiontx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State of a transaction.
type State uint8

const (
	StateOpen State = iota
	StateCommitting
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

type transaction[K comparable, V Entity[V]] struct {
	e       *engine[K, V]
	id      string
	state   State
	log     Logger
	updates map[K]*updatesList[V]
}

func newTransaction[K comparable, V Entity[V]](e *engine[K, V]) *transaction[K, V] {
	id := uuid.NewString()
	return &transaction[K, V]{
		e:       e,
		id:      id,
		state:   StateOpen,
		log:     e.log.With(Fields{"tx": id, "cache": e.cacheName}),
		updates: make(map[K]*updatesList[V]),
	}
}

func (t *transaction[K, V]) ID() string   { return t.id }
func (t *transaction[K, V]) State() State { return t.state }

func (t *transaction[K, V]) AddTask(ctx context.Context, key K, task Task[V]) error {
	if t.state != StateOpen {
		return ErrTxClosed
	}
	u, ok := t.updates[key]
	if !ok {
		w, err := t.e.store.Get(ctx, key)
		if err != nil {
			return err
		}
		if w == nil {
			t.log.Debug("no cache entry for key, task ignored", Fields{"key": keyString(key)})
			return nil
		}
		realm, err := t.e.realms.Realm(ctx, w.Entity.RealmID())
		if err != nil {
			return err
		}
		u = newUpdatesList(realm, w, Persistent)
		t.updates[key] = u
	}
	u.add(task)
	return nil
}

func (t *transaction[K, V]) AddTaskWithEntity(ctx context.Context, key K, task Task[V], entity V, state PersistenceState) error {
	if t.state != StateOpen {
		return ErrTxClosed
	}
	if isNil(entity) {
		return ErrNilEntity
	}
	realm, err := t.e.realms.Realm(ctx, entity.RealmID())
	if err != nil {
		return err
	}
	u := newUpdatesList(realm, NewWrapper(entity), state)
	t.updates[key] = u
	u.add(task)
	return nil
}

func (t *transaction[K, V]) ReloadEntity(ctx context.Context, key K, w *Wrapper[V]) error {
	if t.state != StateOpen {
		return ErrTxClosed
	}
	if w == nil || isNil(w.Entity) {
		return ErrNilEntity
	}
	realm, err := t.e.realms.Realm(ctx, w.Entity.RealmID())
	if err != nil {
		return err
	}
	state := Persistent
	var queued []Task[V]
	if prev, ok := t.updates[key]; ok {
		state = prev.state
		queued = prev.tasks
	}
	u := newUpdatesList(realm, w, state)
	for _, task := range queued {
		u.add(task)
	}
	t.updates[key] = u
	return nil
}

func (t *transaction[K, V]) Get(ctx context.Context, key K) (*Wrapper[V], error) {
	if t.state != StateOpen {
		return nil, ErrTxClosed
	}
	if u, ok := t.updates[key]; ok {
		if u.scheduledForRemove() {
			return nil, nil
		}
		return u.wrapper, nil
	}
	w, err := t.e.store.Get(ctx, key)
	if err != nil || w == nil {
		return nil, err
	}
	realm, err := t.e.realms.Realm(ctx, w.Entity.RealmID())
	if err != nil {
		return nil, err
	}
	t.updates[key] = newUpdatesList(realm, w, Persistent)
	return w, nil
}

type pendingWrite[K comparable, V any] struct {
	key     K
	merged  *MergedUpdate[V]
	wrapper *Wrapper[V]
}

func (t *transaction[K, V]) Commit(ctx context.Context) error {
	if t.state != StateOpen {
		return ErrTxClosed
	}
	t.state = StateCommitting
	start := time.Now()

	var writes []pendingWrite[K, V]
	for key, u := range t.updates {
		if u.state == Transient {
			continue
		}
		merged := computeUpdate(u.tasks, u.wrapper, u.realm, t.e.expiration)
		if merged == nil {
			continue
		}
		writes = append(writes, pendingWrite[K, V]{key: key, merged: merged, wrapper: u.wrapper})
	}

	// Writes settle on their own once started.
	wctx := context.WithoutCancel(ctx)

	var (
		mu       sync.Mutex
		failures []*KeyError
	)
	var g errgroup.Group
	g.SetLimit(t.e.concurrency)
	for _, pw := range writes {
		pw := pw
		g.Go(func() error {
			err := t.e.writeInCluster(wctx, t.log, pw.key, pw.merged, pw.wrapper)
			if err != nil {
				ks := keyString(pw.key)
				t.log.Error("cluster write failed", Fields{"key": ks, "op": pw.merged.Operation().String(), "err": err})
				t.e.hooks.WriteFailed(t.e.cacheName, ks, pw.merged.Operation(), err)
				mu.Lock()
				failures = append(failures, &KeyError{Key: ks, Op: pw.merged.Operation(), Err: err})
				mu.Unlock()
				return nil
			}
			t.e.remote.Forward(wctx, pw.merged.Realm(), t.e.cacheName, pw.key, pw.merged, pw.wrapper)
			return nil
		})
	}
	_ = g.Wait()

	t.updates = nil
	t.state = StateCommitted
	elapsed := time.Since(start)
	t.e.hooks.CommitSettled(t.e.cacheName, len(writes), len(failures), elapsed)
	t.log.Debug("commit settled", Fields{"writes": len(writes), "failed": len(failures), "elapsed": elapsed})

	if len(failures) > 0 {
		return &CommitError{TxID: t.id, Failures: failures}
	}
	return nil
}

func (t *transaction[K, V]) Rollback(context.Context) error {
	if t.state != StateOpen {
		return ErrTxClosed
	}
	t.updates = nil
	t.state = StateRolledBack
	return nil
}
