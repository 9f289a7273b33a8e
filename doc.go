// Package sessiontx implements a changelog-based transaction over a replicated,
// versioned entity cache. A transaction buffers update tasks per key, applies
// them eagerly to a transaction-local copy (read-your-own-writes) and, on
// commit, merges each key's tasks into a single cache operation that is
// written with compare-and-swap protection.
//
// Components:
//   - Store[K, V]: the replicated cache (memory, kv over a byte Provider, Redis).
//   - Task[V]: one mutation plus the cache operation it implies.
//   - MergedUpdate[V]: the net operation for one key within one transaction.
//   - RemoteInvoker[K, V]: best-effort forwarder to a secondary site.
//
// Flow:
//
//	tx := engine.Begin()
//	_ = tx.AddTask(ctx, "s1", session.SetState(session.StateLoggingOut))
//	w, _ := tx.Get(ctx, "s1") // sees the pending change
//	_ = tx.Commit(ctx)        // one CAS-protected write per key
//
// Conflicts on replace are retried a bounded number of times against the
// latest stored entity; once exhausted the write is dropped with a warning.
package sessiontx
