package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	passKey ctxKey = iota
	screenIDKey
	actorKey
)

// WithPass returns a context with the scheduler pass number set.
func WithPass(ctx context.Context, pass int) context.Context {
	return context.WithValue(ctx, passKey, pass)
}

// WithScreenID returns a context with the screen ID set.
func WithScreenID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, screenIDKey, id)
}

// WithActor returns a context with the acting identity set (used on the
// versioning surface).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// Pass extracts the pass number, or -1 if absent.
func Pass(ctx context.Context) int {
	if v, ok := ctx.Value(passKey).(int); ok {
		return v
	}
	return -1
}

// ScreenID extracts the screen ID from the context, or "" if absent.
func ScreenID(ctx context.Context) string {
	v, _ := ctx.Value(screenIDKey).(string)
	return v
}

// Actor extracts the actor from the context, or "" if absent.
func Actor(ctx context.Context) string {
	v, _ := ctx.Value(actorKey).(string)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// scheduling correlation fields from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and the fields appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if pass := Pass(ctx); pass >= 0 {
		r.AddAttrs(slog.Int("pass", pass))
	}
	if v := ScreenID(ctx); v != "" {
		r.AddAttrs(slog.String("screen_id", v))
	}
	if v := Actor(ctx); v != "" {
		r.AddAttrs(slog.String("actor", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
