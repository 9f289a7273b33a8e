package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/sessiontx"
)

var _ sessiontx.Logger = ZapLogger{}

// ZapLogger adapts a *zap.Logger. With maps onto zap's child loggers so
// transaction fields are encoded once.
type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f sessiontx.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f sessiontx.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f sessiontx.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f sessiontx.Fields) { z.L.Error(msg, zf(f)...) }

func (z ZapLogger) With(f sessiontx.Fields) sessiontx.Logger {
	return ZapLogger{L: z.L.With(zf(f)...)}
}

func zf(f sessiontx.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
