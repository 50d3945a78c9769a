package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// Entry is a single path/data pair written as part of a batch.
type Entry struct {
	Path string
	Data []byte
}

// Storage provides an abstraction over key-value style file storage.
//
// WriteBatch writes all entries as one unit. Backends that support
// transactions apply it atomically; the others apply it in order and stop at
// the first failure.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	WriteBatch(ctx context.Context, entries []Entry) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}
