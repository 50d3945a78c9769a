package clog

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// AttributesHandler wraps another handler and appends the context's
// attribute bag to each record, keys in sorted order. Records logged with a
// context that carries no bag pass through unchanged.
type AttributesHandler struct {
	slog.Handler
}

func NewAttributesHandler(next slog.Handler) *AttributesHandler {
	return &AttributesHandler{Handler: next}
}

func (h *AttributesHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs := GetAttributes(ctx); len(attrs) > 0 {
		for _, k := range slices.Sorted(maps.Keys(attrs)) {
			record.AddAttrs(slog.Any(k, attrs[k]))
		}
	}
	return h.Handler.Handle(ctx, record)
}

func (h *AttributesHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewAttributesHandler(h.Handler.WithAttrs(attrs))
}

func (h *AttributesHandler) WithGroup(name string) slog.Handler {
	return NewAttributesHandler(h.Handler.WithGroup(name))
}
