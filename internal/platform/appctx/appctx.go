// Package appctx carries the request-scoped logger through context.Context.
//
// The logger is held by reference: enriching it with With is visible to every
// holder of the request context, including middleware that captured the
// context before the enrichment (the access log sees user_id bound by a route
// guard).
package appctx

import (
	"context"
	"log/slog"
	"sync"
)

type loggerKey struct{}

type loggerRef struct {
	mu sync.RWMutex
	l  *slog.Logger
}

func (r *loggerRef) get() *slog.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.l
}

// WithLogger attaches a new logger reference to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, &loggerRef{l: l})
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	ref, ok := ctx.Value(loggerKey{}).(*loggerRef)
	if !ok {
		return nil, false
	}
	l := ref.get()
	return l, l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

// With adds attrs to the request logger in place. Without one, it attaches
// slog.Default() enriched with attrs.
func With(ctx context.Context, args ...any) context.Context {
	ref, ok := ctx.Value(loggerKey{}).(*loggerRef)
	if !ok || ref.get() == nil {
		return WithLogger(ctx, slog.Default().With(args...))
	}
	ref.mu.Lock()
	ref.l = ref.l.With(args...)
	ref.mu.Unlock()
	return ctx
}
