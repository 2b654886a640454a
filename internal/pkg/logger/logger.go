// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	base zerolog.Logger
	once sync.Once
)

// Init 初始化全局日志器。service 会作为固定字段打进每条日志。
// 多次调用只有第一次生效。
func Init(service string) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if lv, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lv != zerolog.NoLevel {
			level = lv
		}
		base = zerolog.New(os.Stdout).
			Level(level).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

// L 返回全局日志器。
func L() *zerolog.Logger {
	return &base
}

// Ctx 返回携带当前 trace_id 的日志器，便于在 Jaeger 和日志之间互查。
// ctx 里没有活跃 Span 时退化为全局日志器。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return &base
	}
	l := base.With().Str("trace_id", sc.TraceID().String()).Logger()
	return &l
}
