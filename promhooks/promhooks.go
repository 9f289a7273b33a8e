// Package promhooks exports engine events as Prometheus metrics.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/sessiontx"
)

type Options struct {
	Namespace  string                // "" => "sessiontx"
	Registerer prometheus.Registerer // nil => prometheus.DefaultRegisterer
}

// Hooks counts events per cache. Keys never become label values.
type Hooks struct {
	conflicts *prometheus.CounterVec
	abandoned *prometheus.CounterVec
	vanished  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	writes    *prometheus.CounterVec
	commits   *prometheus.HistogramVec
}

var _ sessiontx.Hooks = (*Hooks)(nil)

// New registers the collectors and fails if any of them is already
// registered under the same name.
func New(opts Options) (*Hooks, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "sessiontx"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "tx",
			Name:      name,
			Help:      help,
		}, labels)
	}
	h := &Hooks{
		conflicts: counter("replace_conflicts_total", "Counter of lost compare-and-swap attempts.", "cache"),
		abandoned: counter("replace_abandoned_total", "Counter of writes dropped after exhausting replace retries.", "cache"),
		vanished:  counter("entity_vanished_total", "Counter of entities removed while a replace was retried.", "cache"),
		failures:  counter("write_failures_total", "Counter of store failures by operation.", "cache", "op"),
		dropped:   counter("forward_dropped_total", "Counter of remote forwards dropped.", "cache"),
		writes:    counter("writes_total", "Counter of keys written by committed transactions.", "cache"),
		commits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "tx",
			Name:      "commit_duration_seconds",
			Help:      "Bucketed histogram of commit time (s) until every key settled.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		}, []string{"cache"}),
	}
	for _, c := range []prometheus.Collector{h.conflicts, h.abandoned, h.vanished, h.failures, h.dropped, h.writes, h.commits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) ReplaceConflict(cache, _ string, _ int)  { h.conflicts.WithLabelValues(cache).Inc() }
func (h *Hooks) ReplaceAbandoned(cache, _ string, _ int) { h.abandoned.WithLabelValues(cache).Inc() }
func (h *Hooks) EntityVanished(cache, _ string)          { h.vanished.WithLabelValues(cache).Inc() }
func (h *Hooks) ForwardDropped(cache, _ string)          { h.dropped.WithLabelValues(cache).Inc() }

func (h *Hooks) WriteFailed(cache, _ string, op sessiontx.Operation, _ error) {
	h.failures.WithLabelValues(cache, op.String()).Inc()
}

func (h *Hooks) CommitSettled(cache string, writes, _ int, elapsed time.Duration) {
	h.writes.WithLabelValues(cache).Add(float64(writes))
	h.commits.WithLabelValues(cache).Observe(elapsed.Seconds())
}
