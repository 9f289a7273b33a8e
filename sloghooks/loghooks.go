package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/sessiontx"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ConflictEvery uint64
	CommitEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix; session ids are
	// bearer secrets.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	conflictCtr atomic.Uint64
	commitCtr   atomic.Uint64
}

var _ sessiontx.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ReplaceConflict(cache, key string, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("sessiontx.replace_conflict",
		"cache", cache,
		"key", h.redact(key),
		"attempt", attempt)
}

func (h *Hooks) ReplaceAbandoned(cache, key string, attempts int) {
	if h.l == nil {
		return
	}
	h.l.Warn("sessiontx.replace_abandoned",
		"cache", cache,
		"key", h.redact(key),
		"attempts", attempts)
}

func (h *Hooks) EntityVanished(cache, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("sessiontx.entity_vanished",
		"cache", cache,
		"key", h.redact(key))
}

func (h *Hooks) WriteFailed(cache, key string, op sessiontx.Operation, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("sessiontx.write_failed",
		"cache", cache,
		"key", h.redact(key),
		"op", op.String(),
		"err", err)
}

func (h *Hooks) CommitSettled(cache string, writes, failed int, elapsed time.Duration) {
	if h.l == nil || !sample(h.opts.CommitEvery, &h.commitCtr) {
		return
	}
	h.l.Debug("sessiontx.commit_settled",
		"cache", cache,
		"writes", writes,
		"failed", failed,
		"elapsed", elapsed)
}

func (h *Hooks) ForwardDropped(cache, key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("sessiontx.forward_dropped",
		"cache", cache,
		"key", h.redact(key))
}
