package sessiontx

import "time"

// Expiration is the lifespan and max idle a write carries, in milliseconds.
// Values <= 0 mean "no expiry" to stores.
type Expiration struct {
	LifespanMs int64
	MaxIdleMs  int64
}

func (e Expiration) expired() bool {
	return e.LifespanMs == ExpiredFlag || e.MaxIdleMs == ExpiredFlag
}

// Lifespan returns the lifespan as a duration; 0 when unbounded.
func (e Expiration) Lifespan() time.Duration { return msDuration(e.LifespanMs) }

// MaxIdle returns the max idle as a duration; 0 when unbounded.
func (e Expiration) MaxIdle() time.Duration { return msDuration(e.MaxIdleMs) }

func msDuration(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// MergedUpdate is the net cache operation for one key in one transaction.
type MergedUpdate[V any] struct {
	op     Operation
	exp    Expiration
	tasks  []Task[V]
	realm  *Realm
	policy ExpirationPolicy[V]
}

func (m *MergedUpdate[V]) Operation() Operation   { return m.op }
func (m *MergedUpdate[V]) Expiration() Expiration { return m.exp }
func (m *MergedUpdate[V]) Realm() *Realm          { return m.realm }

// RunUpdate replays every merged task, in registration order, on entity.
// Only conflict retries call it; the transaction already ran the tasks once.
func (m *MergedUpdate[V]) RunUpdate(entity V) {
	for _, t := range m.tasks {
		t.RunUpdate(entity)
	}
}

// expirationFor recomputes expiration against the given entity state.
func (m *MergedUpdate[V]) expirationFor(entity V) Expiration {
	return Expiration{
		LifespanMs: m.policy.LifespanMs(m.realm, entity),
		MaxIdleMs:  m.policy.MaxIdleMs(m.realm, entity),
	}
}

// computeUpdate folds tasks into one operation. It returns nil when nothing
// cache-visible is implied. REMOVE from any task wins; otherwise the first
// non-NONE operation decides, so a later REPLACE never downgrades an ADD.
func computeUpdate[V any](tasks []Task[V], w *Wrapper[V], realm *Realm, policy ExpirationPolicy[V]) *MergedUpdate[V] {
	if len(tasks) == 0 {
		return nil
	}
	entity := w.Entity
	op := OpNone
	for _, t := range tasks {
		o := t.Operation(entity)
		if o == OpRemove {
			op = OpRemove
			break
		}
		if op == OpNone {
			op = o
		}
	}
	if op == OpNone {
		return nil
	}

	m := &MergedUpdate[V]{
		op:     op,
		tasks:  append([]Task[V](nil), tasks...),
		realm:  realm,
		policy: policy,
	}
	m.exp = m.expirationFor(entity)
	if op != OpRemove && m.exp.expired() {
		m.op = OpRemove
	}
	return m
}
