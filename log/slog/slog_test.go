//go:build go1.21

package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/sessiontx"
)

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	var l sessiontx.Logger = Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))}

	l.With(sessiontx.Fields{"tx": "t1"}).Debug("replace succeeded", sessiontx.Fields{"attempt": 2})
	out := buf.String()
	for _, want := range []string{"level=DEBUG", "tx=t1", "attempt=2", `msg="replace succeeded"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
