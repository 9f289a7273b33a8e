package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/sessiontx"
)

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var l sessiontx.Logger = ZapLogger{L: zap.New(core)}

	tx := l.With(sessiontx.Fields{"tx": "t1", "cache": "sessions"})
	tx.Warn("replace failed", sessiontx.Fields{"key": "s1", "err": errors.New("boom")})
	l.Debug("plain", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["tx"] != "t1" || ctx["cache"] != "sessions" || ctx["key"] != "s1" || ctx["err"] != "boom" {
		t.Fatalf("context=%v", ctx)
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("level=%v", entries[0].Level)
	}
	if _, ok := entries[1].ContextMap()["tx"]; ok {
		t.Fatalf("With must not leak into the parent logger")
	}
}
