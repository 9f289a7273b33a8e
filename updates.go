package sessiontx

// PersistenceState decides whether a key's updates ever reach the store.
type PersistenceState uint8

const (
	// Persistent entities are written on commit.
	Persistent PersistenceState = iota
	// Transient entities live only inside the owning transaction.
	Transient
)

func (s PersistenceState) String() string {
	if s == Transient {
		return "transient"
	}
	return "persistent"
}

// updatesList is the per-key changelog of one transaction.
type updatesList[V any] struct {
	realm   *Realm
	wrapper *Wrapper[V]
	state   PersistenceState
	tasks   []Task[V]
}

func newUpdatesList[V any](realm *Realm, w *Wrapper[V], state PersistenceState) *updatesList[V] {
	return &updatesList[V]{realm: realm, wrapper: w, state: state}
}

// add runs t against the transaction-local entity and queues it.
func (u *updatesList[V]) add(t Task[V]) {
	t.RunUpdate(u.wrapper.Entity)
	u.tasks = append(u.tasks, t)
}

// scheduledForRemove reports whether any queued task resolves to REMOVE over
// the current entity state.
func (u *updatesList[V]) scheduledForRemove() bool {
	for _, t := range u.tasks {
		if t.Operation(u.wrapper.Entity) == OpRemove {
			return true
		}
	}
	return false
}
