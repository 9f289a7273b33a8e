package sessiontx

import (
	"context"
	"errors"
	"time"
)

// Engine hands out transactions bound to one Store and its policies.
// It is safe for concurrent use; the transactions it creates are not.
type Engine[K comparable, V Entity[V]] interface {
	CacheName() string
	Begin() Transaction[K, V]
}

// Transaction is a changelog over one unit of work. Calls must be sequential.
type Transaction[K comparable, V Entity[V]] interface {
	ID() string
	State() State

	// AddTask queues task for an existing key, loading it from the store on
	// first use. A key missing from the store is silently ignored.
	AddTask(ctx context.Context, key K, task Task[V]) error

	// AddTaskWithEntity registers entity under key, replacing any previous
	// registration, then runs task on it.
	AddTaskWithEntity(ctx context.Context, key K, task Task[V], entity V, state PersistenceState) error

	// ReloadEntity swaps the transaction's snapshot for w and re-runs the
	// queued tasks against it. w must be freshly loaded from the store; the
	// transaction does not re-read the key.
	ReloadEntity(ctx context.Context, key K, w *Wrapper[V]) error

	// Get returns the in-transaction view, or nil when the key is missing or
	// scheduled for removal.
	Get(ctx context.Context, key K) (*Wrapper[V], error)

	// Commit writes every persistent key and blocks until all writes settled.
	// Lost races never fail a commit; store failures are aggregated in a
	// *CommitError.
	Commit(ctx context.Context) error

	// Rollback discards the changelog. Nothing reached the store, so there is
	// nothing to undo.
	Rollback(ctx context.Context) error
}

// Options configure an Engine.
// Only Store is required; others have sensible defaults.
type Options[K comparable, V Entity[V]] struct {
	// Required
	Store Store[K, V]

	Expiration ExpirationPolicy[V] // nil => NeverExpire
	Realms     RealmResolver       // nil => realm with only the id set
	Remote     RemoteInvoker[K, V] // nil => NopRemote
	Logger     Logger              // if nil, NopLogger is used
	Hooks      Hooks               // if nil, NopHooks is used

	MaxReplaceRetries   int           // 0 => 25; total compare-and-swap attempts per key
	ReplaceBackoff      time.Duration // pause between attempts; 0 => retry immediately
	MaxConcurrentWrites int           // 0 => 64; per-commit fan-out bound
}

func New[K comparable, V Entity[V]](opts Options[K, V]) (Engine[K, V], error) {
	return newEngine(opts)
}

type engine[K comparable, V Entity[V]] struct {
	store      Store[K, V]
	cacheName  string
	expiration ExpirationPolicy[V]
	realms     RealmResolver
	remote     RemoteInvoker[K, V]
	log        Logger
	hooks      Hooks

	maxRetries  int
	backoff     time.Duration
	concurrency int
}

func newEngine[K comparable, V Entity[V]](opts Options[K, V]) (*engine[K, V], error) {
	if opts.Store == nil {
		return nil, errors.New("sessiontx: store is required")
	}
	if opts.MaxReplaceRetries < 0 || opts.MaxConcurrentWrites < 0 || opts.ReplaceBackoff < 0 {
		return nil, errors.New("sessiontx: negative limits are not allowed")
	}

	e := &engine[K, V]{
		store:     opts.Store,
		cacheName: opts.Store.Name(),
		backoff:   opts.ReplaceBackoff,
	}
	e.expiration = opts.Expiration
	if e.expiration == nil {
		e.expiration = NeverExpire[V]{}
	}
	e.remote = opts.Remote
	if e.remote == nil {
		e.remote = NopRemote[K, V]{}
	}
	e.realms = coalesce[RealmResolver](opts.Realms, bareRealms{})
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.maxRetries = coalesce(opts.MaxReplaceRetries, defaultMaxReplaceRetries)
	e.concurrency = coalesce(opts.MaxConcurrentWrites, defaultMaxConcurrentWrites)
	return e, nil
}

func (e *engine[K, V]) CacheName() string { return e.cacheName }

func (e *engine[K, V]) Begin() Transaction[K, V] { return newTransaction(e) }
