package logging

import (
	"context"
	"log/slog"
)

type passKey struct{}

// WithPass returns a copy of ctx tagged with a synchronization pass ID.
// Records logged with that context through a handler from Setup carry the
// ID as the "pass" attribute.
func WithPass(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passKey{}, passID)
}

// PassFromContext returns the pass ID on ctx, or "".
func PassFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(passKey{}).(string)
	return id
}

// ContextHandler adds the pass ID of the record's context to each record.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := PassFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("pass", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
