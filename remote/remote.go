// Package remote forwards committed writes to a secondary site.
//
// Invoker implements sessiontx.RemoteInvoker: it snapshots the merged update
// into an Envelope on the caller's goroutine and hands it to a bounded worker
// pool that delivers it to a Sink. When the queue is full the envelope is
// dropped and reported; the local commit never waits on the remote site.
//
// usage:
//
//	sink, _ := redisstream.New(redisstream.Options{Client: drClient, Stream: "sessions:dr"})
//	inv, _ := remote.New[string, *session.UserSession](remote.Options[*session.UserSession]{
//	    Sink:    sink,
//	    Workers: 2,
//	    Queue:   4096,
//	})
//	defer inv.Close()
//
//	engine, _ := sessiontx.New(sessiontx.Options[string, *session.UserSession]{
//	    Store:  st,
//	    Remote: inv,
//	})
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/sessiontx"
	c "github.com/unkn0wn-root/sessiontx/codec"
)

// Envelope is what the secondary site receives for one key. Local metadata
// never leaves the cluster.
//
// Version is the one the transaction read the entity at, 0 for a new entity.
// The write assigns a newer one the sender never sees, so Version is not an
// ordering token.
type Envelope struct {
	Realm      string `msgpack:"realm" json:"realm"`
	Cache      string `msgpack:"cache" json:"cache"`
	Key        string `msgpack:"key" json:"key"`
	Operation  string `msgpack:"op" json:"op"`
	Version    uint64 `msgpack:"ver" json:"ver"`
	LifespanMs int64  `msgpack:"ls" json:"ls"`
	MaxIdleMs  int64  `msgpack:"mi" json:"mi"`
	Entity     []byte `msgpack:"e,omitempty" json:"e,omitempty"` // nil for removals
	SentAtMs   int64  `msgpack:"at" json:"at"`
}

// Sink delivers envelopes to the secondary site. It owns its retry policy.
type Sink interface {
	Send(ctx context.Context, env Envelope) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, env Envelope) error

func (f SinkFunc) Send(ctx context.Context, env Envelope) error { return f(ctx, env) }

// Options configure an Invoker.
// Only Sink is required.
type Options[V any] struct {
	Sink Sink

	Codec   c.Codec[V]       // entity codec; nil => msgpack
	Workers int              // 0 => 1
	Queue   int              // 0 => 1024
	Timeout time.Duration    // per delivery; 0 => 10s
	Logger  sessiontx.Logger // if nil, NopLogger is used
	Hooks   sessiontx.Hooks  // if nil, NopHooks is used
	Key     func(any) string // key rendering; nil => fmt.Sprint
	Now     func() time.Time // nil => time.Now
}

type Invoker[K comparable, V any] struct {
	sink    Sink
	codec   c.Codec[V]
	timeout time.Duration
	log     sessiontx.Logger
	hooks   sessiontx.Hooks
	key     func(any) string
	now     func() time.Time

	mu     sync.RWMutex // guards closed against concurrent sends
	closed bool
	q      chan Envelope
	wg     sync.WaitGroup
	once   sync.Once
}

var _ sessiontx.RemoteInvoker[string, any] = (*Invoker[string, any])(nil)

func New[K comparable, V any](opts Options[V]) (*Invoker[K, V], error) {
	if opts.Sink == nil {
		return nil, errors.New("remote: sink is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	qlen := opts.Queue
	if qlen <= 0 {
		qlen = 1024
	}
	inv := &Invoker[K, V]{
		sink:    opts.Sink,
		codec:   opts.Codec,
		timeout: opts.Timeout,
		log:     opts.Logger,
		hooks:   opts.Hooks,
		key:     opts.Key,
		now:     opts.Now,
		q:       make(chan Envelope, qlen),
	}
	if inv.codec == nil {
		inv.codec = c.Msgpack[V]{}
	}
	if inv.timeout <= 0 {
		inv.timeout = 10 * time.Second
	}
	if inv.log == nil {
		inv.log = sessiontx.NopLogger{}
	}
	if inv.hooks == nil {
		inv.hooks = sessiontx.NopHooks{}
	}
	if inv.key == nil {
		inv.key = func(k any) string { return fmt.Sprint(k) }
	}
	if inv.now == nil {
		inv.now = time.Now
	}

	inv.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer inv.wg.Done()
			for env := range inv.q {
				inv.deliver(env)
			}
		}()
	}
	return inv, nil
}

// Forward never blocks: encoding happens inline, delivery on a worker.
func (inv *Invoker[K, V]) Forward(_ context.Context, realm *sessiontx.Realm, cacheName string, key K, update *sessiontx.MergedUpdate[V], w *sessiontx.Wrapper[V]) {
	ks := inv.key(key)
	op := update.Operation()
	exp := update.Expiration()
	env := Envelope{
		Cache:      cacheName,
		Key:        ks,
		Operation:  op.String(),
		Version:    uint64(w.Version),
		LifespanMs: exp.LifespanMs,
		MaxIdleMs:  exp.MaxIdleMs,
		SentAtMs:   inv.now().UnixMilli(),
	}
	if realm != nil {
		env.Realm = realm.ID
	}
	if op != sessiontx.OpRemove {
		b, err := inv.codec.Encode(w.Entity)
		if err != nil {
			inv.log.Error("remote forward: encode failed", sessiontx.Fields{"cache": cacheName, "key": ks, "err": err})
			return
		}
		env.Entity = b
	}

	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if inv.closed {
		inv.hooks.ForwardDropped(cacheName, ks)
		return
	}
	select {
	case inv.q <- env:
	default:
		inv.hooks.ForwardDropped(cacheName, ks)
		inv.log.Warn("remote forward queue full, dropping", sessiontx.Fields{"cache": cacheName, "key": ks})
	}
}

func (inv *Invoker[K, V]) deliver(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), inv.timeout)
	defer cancel()
	if err := inv.sink.Send(ctx, env); err != nil {
		inv.log.Warn("remote forward failed", sessiontx.Fields{"cache": env.Cache, "key": env.Key, "op": env.Operation, "err": err})
	}
}

// Close stops accepting envelopes and waits for queued ones to be delivered.
func (inv *Invoker[K, V]) Close() {
	inv.once.Do(func() {
		inv.mu.Lock()
		inv.closed = true
		close(inv.q)
		inv.mu.Unlock()
		inv.wg.Wait()
	})
}
