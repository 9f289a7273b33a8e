package sessiontx

import (
	"context"
	"fmt"
	"time"
)

const (
	// NoExpiration disables lifespan or max-idle expiry for an entry.
	NoExpiration int64 = -1
	// ExpiredFlag reports that the entry has already outlived its realm limits.
	// A merged update carrying it is turned into a removal.
	ExpiredFlag int64 = -2
)

// Realm carries the per-tenant settings expiration policies read from.
type Realm struct {
	ID   string
	Name string

	SessionIdleTimeout  time.Duration // 0 => no idle expiry
	SessionMaxLifespan  time.Duration // 0 => no lifespan limit
	RememberMeIdle      time.Duration
	RememberMeLifespan  time.Duration
	LoginFailureMaxWait time.Duration
}

// RealmResolver looks up realms by id. Implementations should be cheap; the
// transaction resolves a realm once per key.
type RealmResolver interface {
	Realm(ctx context.Context, id string) (*Realm, error)
}

// StaticRealms is a fixed RealmResolver.
type StaticRealms map[string]*Realm

func (s StaticRealms) Realm(_ context.Context, id string) (*Realm, error) {
	r, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("sessiontx: unknown realm %q", id)
	}
	return r, nil
}

type bareRealms struct{}

func (bareRealms) Realm(_ context.Context, id string) (*Realm, error) {
	return &Realm{ID: id}, nil
}

// ExpirationPolicy computes lifespan and max idle (milliseconds) for the
// committed state of an entity. NoExpiration and ExpiredFlag are valid results.
type ExpirationPolicy[V any] interface {
	LifespanMs(realm *Realm, entity V) int64
	MaxIdleMs(realm *Realm, entity V) int64
}

// ExpirationFuncs adapts two functions to ExpirationPolicy. A nil func yields
// NoExpiration.
type ExpirationFuncs[V any] struct {
	Lifespan func(*Realm, V) int64
	MaxIdle  func(*Realm, V) int64
}

func (e ExpirationFuncs[V]) LifespanMs(r *Realm, v V) int64 {
	if e.Lifespan == nil {
		return NoExpiration
	}
	return e.Lifespan(r, v)
}

func (e ExpirationFuncs[V]) MaxIdleMs(r *Realm, v V) int64 {
	if e.MaxIdle == nil {
		return NoExpiration
	}
	return e.MaxIdle(r, v)
}

// NeverExpire keeps entries until removed.
type NeverExpire[V any] struct{}

func (NeverExpire[V]) LifespanMs(*Realm, V) int64 { return NoExpiration }
func (NeverExpire[V]) MaxIdleMs(*Realm, V) int64  { return NoExpiration }

// Timestamped entities expose the instants RealmTimeouts measures from.
type Timestamped interface {
	StartedAt() time.Time
	LastRefreshAt() time.Time
	IsRememberMe() bool
}

// RealmTimeouts derives expiration from the realm's session settings: the
// lifespan is what remains of the max lifespan since the entity started and
// the max idle is what remains of the idle timeout since its last refresh.
// Entities that are not Timestamped never expire.
type RealmTimeouts[V any] struct {
	Now func() time.Time // nil => time.Now
}

func (p RealmTimeouts[V]) LifespanMs(r *Realm, v V) int64 {
	ts, ok := any(v).(Timestamped)
	if !ok || r == nil {
		return NoExpiration
	}
	limit := r.SessionMaxLifespan
	if ts.IsRememberMe() && r.RememberMeLifespan > limit {
		limit = r.RememberMeLifespan
	}
	return remaining(limit, ts.StartedAt(), p.now())
}

func (p RealmTimeouts[V]) MaxIdleMs(r *Realm, v V) int64 {
	ts, ok := any(v).(Timestamped)
	if !ok || r == nil {
		return NoExpiration
	}
	limit := r.SessionIdleTimeout
	if ts.IsRememberMe() && r.RememberMeIdle > limit {
		limit = r.RememberMeIdle
	}
	return remaining(limit, ts.LastRefreshAt(), p.now())
}

func (p RealmTimeouts[V]) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func remaining(limit time.Duration, since, now time.Time) int64 {
	if limit <= 0 {
		return NoExpiration
	}
	return RemainingMs(since.Add(limit).Sub(now))
}

// RemainingMs converts time left into an expiration value. Partial
// milliseconds round up, since stores read 0 as unbounded; nothing left is
// ExpiredFlag.
func RemainingMs(left time.Duration) int64 {
	if left <= 0 {
		return ExpiredFlag
	}
	return int64((left + time.Millisecond - 1) / time.Millisecond)
}
