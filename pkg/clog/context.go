package clog

import (
	"context"
	"maps"
	"sync"

	"github.com/oklog/ulid/v2"
)

const (
	OperationAttributeKey = "operation"
	RunIDAttributeKey     = "run_id"
	ErrorAttributeKey     = "error.message"
	StackAttributeKey     = "error.stack"
)

// attrBag collects attributes over the life of a request or engine run.
// Handlers deeper in the call chain add to it and AttributesHandler reads it
// back when a record is logged.
type attrBag struct {
	mu    sync.RWMutex
	attrs map[string]any
}

type attrBagKey struct{}

func bagFrom(ctx context.Context) *attrBag {
	b, _ := ctx.Value(attrBagKey{}).(*attrBag)
	return b
}

// merge copies src into dst. Nested maps are merged key by key instead of
// replaced, so run summaries can be built up in several steps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if cur, ok := dst[k].(map[string]any); ok {
			merge(cur, sub)
			continue
		}
		dst[k] = maps.Clone(sub)
	}
}

// ContextWithSlog attaches a fresh attribute bag, replacing any bag already
// on ctx.
func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attrBagKey{}, &attrBag{attrs: map[string]any{}})
}

// ContextWithOperation starts a bag for one engine run, tagged with the
// operation name and a sortable run id.
func ContextWithOperation(ctx context.Context, operation string) context.Context {
	ctx = ContextWithSlog(ctx)
	AddAttributes(ctx, map[string]any{
		OperationAttributeKey: operation,
		RunIDAttributeKey:     ulid.Make().String(),
	})
	return ctx
}

func RunID(ctx context.Context) string {
	return GetAttribute[string](ctx, RunIDAttributeKey)
}

// AddAttribute is a no-op on contexts without a bag.
func AddAttribute(ctx context.Context, key string, value any) {
	AddAttributes(ctx, map[string]any{key: value})
}

func AddAttributes(ctx context.Context, attrs map[string]any) {
	b := bagFrom(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	merge(b.attrs, attrs)
	b.mu.Unlock()
}

// GetAttribute returns the zero value when key is absent or holds another
// type.
func GetAttribute[T any](ctx context.Context, key string) T {
	v, _ := GetAttributes(ctx)[key].(T)
	return v
}

// GetAttributes returns a copy of the bag, or nil without one.
func GetAttributes(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.attrs)
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
