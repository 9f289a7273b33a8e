package promhooks

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unkn0wn-root/sessiontx"
)

func TestCountersPerCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(Options{Registerer: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h.ReplaceConflict("sessions", "s1", 1)
	h.ReplaceConflict("sessions", "s2", 2)
	h.ReplaceAbandoned("sessions", "s1", 25)
	h.EntityVanished("loginFailures", "u1")
	h.WriteFailed("sessions", "s3", sessiontx.OpRemove, errors.New("down"))
	h.ForwardDropped("sessions", "s1")
	h.CommitSettled("sessions", 3, 1, 20*time.Millisecond)

	if got := testutil.ToFloat64(h.conflicts.WithLabelValues("sessions")); got != 2 {
		t.Fatalf("conflicts=%v", got)
	}
	if got := testutil.ToFloat64(h.abandoned.WithLabelValues("sessions")); got != 1 {
		t.Fatalf("abandoned=%v", got)
	}
	if got := testutil.ToFloat64(h.vanished.WithLabelValues("loginFailures")); got != 1 {
		t.Fatalf("vanished=%v", got)
	}
	if got := testutil.ToFloat64(h.failures.WithLabelValues("sessions", "remove")); got != 1 {
		t.Fatalf("failures=%v", got)
	}
	if got := testutil.ToFloat64(h.writes.WithLabelValues("sessions")); got != 3 {
		t.Fatalf("writes=%v", got)
	}
	if n := testutil.CollectAndCount(h.commits); n != 1 {
		t.Fatalf("commit histogram series=%d", n)
	}
	if n, err := testutil.GatherAndCount(reg, "sessiontx_tx_forward_dropped_total"); err != nil || n != 1 {
		t.Fatalf("forward dropped series=%d err=%v", n, err)
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(Options{Registerer: reg, Namespace: "app"}); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(Options{Registerer: reg, Namespace: "app"}); err == nil {
		t.Fatalf("expected AlreadyRegisteredError")
	}
}
