// Package yamlstore keeps one YAML document per record under a storage
// prefix.
package yamlstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/storage"
)

type Collection[T any] struct {
	storage storage.Storage
	prefix  string
	kind    string
	idOf    func(*T) string
}

// New returns a collection storing records at "<prefix>/<id>.yaml". kind is
// the singular noun used in error messages.
func New[T any](s storage.Storage, prefix, kind string, idOf func(*T) string) *Collection[T] {
	return &Collection[T]{storage: s, prefix: prefix, kind: kind, idOf: idOf}
}

func (c *Collection[T]) path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", c.prefix, id)
}

func (c *Collection[T]) encode(v *T) (storage.Entry, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return storage.Entry{}, cerr.WrapStorage(cerr.OpEncode, c.kind, err)
	}
	return storage.Entry{Path: c.path(c.idOf(v)), Data: data}, nil
}

func (c *Collection[T]) decode(data []byte) (*T, error) {
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, cerr.WrapStorage(cerr.OpDecode, c.kind, err)
	}
	return &v, nil
}

func (c *Collection[T]) exists(ctx context.Context, id string) (bool, error) {
	if id == "" || strings.ContainsAny(id, "/\\") {
		return false, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid %s id", c.kind), nil)
	}
	ok, err := c.storage.Exists(ctx, c.path(id))
	if err != nil {
		return false, cerr.WrapStorage(cerr.OpRead, c.kind, err)
	}
	return ok, nil
}

func (c *Collection[T]) Create(ctx context.Context, v *T) error {
	ok, err := c.exists(ctx, c.idOf(v))
	if err != nil {
		return err
	}
	if ok {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("%s already exists", c.kind), nil)
	}
	return c.write(ctx, v)
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	data, err := c.storage.Read(ctx, c.path(id))
	if err != nil {
		return nil, cerr.WrapStorage(cerr.OpRead, c.kind, err)
	}
	return c.decode(data)
}

func (c *Collection[T]) Update(ctx context.Context, v *T) error {
	ok, err := c.exists(ctx, c.idOf(v))
	if err != nil {
		return err
	}
	if !ok {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("%s not found", c.kind), nil)
	}
	return c.write(ctx, v)
}

// UpdateBatch replaces existing records in one storage batch. Nothing is
// written when any record is missing.
func (c *Collection[T]) UpdateBatch(ctx context.Context, vs []*T) error {
	if len(vs) == 0 {
		return nil
	}
	entries := make([]storage.Entry, 0, len(vs))
	for _, v := range vs {
		ok, err := c.exists(ctx, c.idOf(v))
		if err != nil {
			return err
		}
		if !ok {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("%s %s not found", c.kind, c.idOf(v)), nil)
		}
		entry, err := c.encode(v)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	if err := c.storage.WriteBatch(ctx, entries); err != nil {
		return cerr.WrapStorage(cerr.OpWrite, c.kind, err)
	}
	return nil
}

func (c *Collection[T]) write(ctx context.Context, v *T) error {
	entry, err := c.encode(v)
	if err != nil {
		return err
	}
	if err := c.storage.Write(ctx, entry.Path, entry.Data); err != nil {
		return cerr.WrapStorage(cerr.OpWrite, c.kind, err)
	}
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.storage.Delete(ctx, c.path(id)); err != nil {
		return cerr.WrapStorage(cerr.OpDelete, c.kind, err)
	}
	return nil
}

// All returns every record that passes keep, ordered by id. Records that
// cannot be read or decoded are logged and skipped; cancellation of ctx
// aborts the listing.
func (c *Collection[T]) All(ctx context.Context, keep func(*T) bool) ([]*T, error) {
	paths, err := c.storage.List(ctx, c.prefix)
	if err != nil {
		return nil, cerr.WrapStorage(cerr.OpRead, c.kind+" list", err)
	}
	sort.Strings(paths)

	var out []*T
	for _, p := range paths {
		if !strings.HasSuffix(p, ".yaml") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := c.storage.Read(ctx, p)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable record", "kind", c.kind, "path", p, "error", err)
			continue
		}
		v, err := c.decode(data)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed record", "kind", c.kind, "path", p, "error", err)
			continue
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
