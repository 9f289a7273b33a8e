package sessiontx

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Keys are rendered with fmt.Sprint; implementations that log them should
// redact.
type Hooks interface {
	// A compare-and-swap lost against a concurrent writer; attempt is 1-based.
	ReplaceConflict(cache, key string, attempt int)

	// Every replace attempt lost; this transaction's write for key was dropped.
	ReplaceAbandoned(cache, key string, attempts int)

	// The entity disappeared while a replace was being retried.
	EntityVanished(cache, key string)

	// The store failed (I/O, connectivity) while writing key.
	WriteFailed(cache, key string, op Operation, err error)

	// Commit finished: writes is the number of keys written, failed how many
	// of them hit a store failure.
	CommitSettled(cache string, writes, failed int, elapsed time.Duration)

	// A remote-site forward was dropped (queue full or closed).
	ForwardDropped(cache, key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ReplaceConflict(string, string, int)           {}
func (NopHooks) ReplaceAbandoned(string, string, int)          {}
func (NopHooks) EntityVanished(string, string)                 {}
func (NopHooks) WriteFailed(string, string, Operation, error)  {}
func (NopHooks) CommitSettled(string, int, int, time.Duration) {}
func (NopHooks) ForwardDropped(string, string)                 {}
