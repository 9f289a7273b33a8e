package sessiontx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

var errReplaceConflict = errors.New("sessiontx: replace lost to a concurrent writer")

// writeInCluster issues the merged operation for key. A nil error covers
// success, abandonment after exhausted retries and an entity removed by
// another actor mid-retry.
func (e *engine[K, V]) writeInCluster(ctx context.Context, log Logger, key K, m *MergedUpdate[V], w *Wrapper[V]) error {
	ks := keyString(key)
	switch op := m.Operation(); op {
	case OpRemove:
		return e.store.Remove(ctx, key)

	case OpAdd:
		exp := m.Expiration()
		if err := e.store.Put(ctx, key, w, exp); err != nil {
			return err
		}
		log.Debug("added entity", Fields{"key": ks, "lifespanMs": exp.LifespanMs, "maxIdleMs": exp.MaxIdleMs})
		return nil

	case OpAddIfAbsent:
		exp := m.Expiration()
		existing, err := e.store.PutIfAbsent(ctx, key, w, exp)
		if err != nil {
			return err
		}
		if existing == nil {
			log.Debug("add_if_absent stored entity", Fields{"key": ks, "lifespanMs": exp.LifespanMs, "maxIdleMs": exp.MaxIdleMs})
			return nil
		}
		log.Debug("entity already present, updating it", Fields{"key": ks})
		m.RunUpdate(existing.Entity)
		return e.replace(ctx, log, key, m, existing)

	case OpReplace:
		return e.replace(ctx, log, key, m, w)

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOperation, op)
	}
}

// replace runs the bounded compare-and-swap loop. The first attempt uses
// expected as given; later attempts re-read the key and replay the merged
// tasks on the fresh entity.
func (e *engine[K, V]) replace(ctx context.Context, log Logger, key K, m *MergedUpdate[V], expected *Wrapper[V]) error {
	ks := keyString(key)
	attempt := 0
	vanished, expired := false, false

	b := retry.WithMaxRetries(uint64(e.maxRetries-1), constantBackoff(e.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			cur, err := e.store.Get(ctx, key)
			if err != nil {
				return err
			}
			if cur == nil {
				vanished = true
				return nil
			}
			m.RunUpdate(cur.Entity)
			expected = cur
		}

		next := expected.WithNewVersion(expected.LocalMetadata)
		exp := m.expirationFor(next.Entity)
		if exp.expired() {
			expired = true
			return nil
		}
		ok, err := e.store.Replace(ctx, key, expected, next, exp)
		if err != nil {
			return err
		}
		if !ok {
			e.hooks.ReplaceConflict(e.cacheName, ks, attempt)
			log.Debug("replace failed, will try again", Fields{"key": ks, "attempt": attempt, "version": uint64(expected.Version)})
			return retry.RetryableError(errReplaceConflict)
		}
		log.Debug("replace succeeded", Fields{"key": ks, "attempt": attempt, "lifespanMs": exp.LifespanMs, "maxIdleMs": exp.MaxIdleMs})
		return nil
	})

	switch {
	case errors.Is(err, errReplaceConflict):
		log.Warn("failed to replace entity", Fields{"key": ks, "attempts": attempt})
		e.hooks.ReplaceAbandoned(e.cacheName, ks, attempt)
		return nil
	case err != nil:
		return err
	case vanished:
		log.Debug("entity not found, maybe removed in the meantime; replace ignored", Fields{"key": ks})
		e.hooks.EntityVanished(e.cacheName, ks)
	case expired:
		log.Debug("entity expired while retrying, removing it", Fields{"key": ks})
		return e.store.Remove(ctx, key)
	}
	return nil
}

func constantBackoff(d time.Duration) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) { return d, false })
}
