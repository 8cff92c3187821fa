// Package zap adapts a *zap.Logger to algfetch.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/algfetch"
	"go.uber.org/zap"
)

var _ algfetch.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "algfetch".
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("algfetch")} }

func (z ZapLogger) Debug(msg string, f algfetch.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f algfetch.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f algfetch.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f algfetch.Fields) { z.L.Error(msg, zf(f)...) }

// zf converts fields in key order so output is stable.
func zf(f algfetch.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
