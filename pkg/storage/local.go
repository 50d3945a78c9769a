package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tempSuffix = ".tmp"

// LocalStorage keeps each record as a file below basePath. Writes go through
// a temp file and a rename, so readers never see a partial record. Every call
// fails fast once ctx is done.
type LocalStorage struct {
	basePath string
	mu       sync.RWMutex
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path %q: %w", basePath, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &LocalStorage{basePath: abs}, nil
}

// file maps a storage path onto the filesystem; the leading slash keeps ".."
// segments from escaping basePath.
func (s *LocalStorage) file(path string) string {
	return filepath.Join(s.basePath, filepath.Clean("/"+path))
}

func fsError(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

func (s *LocalStorage) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.file(path))
	if err != nil {
		return nil, fsError("read", path, err)
	}
	return data, nil
}

func (s *LocalStorage) Write(ctx context.Context, path string, data []byte) error {
	return s.WriteBatch(ctx, []Entry{{Path: path, Data: data}})
}

// WriteBatch stages every entry before renaming any of them, so an encode or
// disk-full failure leaves the previous records untouched.
func (s *LocalStorage) WriteBatch(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]string, 0, len(entries))
	discard := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, e := range entries {
		tmp, err := s.stage(e)
		if err != nil {
			discard()
			return err
		}
		staged = append(staged, tmp)
	}
	for i, e := range entries {
		if err := os.Rename(staged[i], s.file(e.Path)); err != nil {
			discard()
			return fsError("commit", e.Path, err)
		}
	}
	return nil
}

func (s *LocalStorage) stage(e Entry) (string, error) {
	target := s.file(e.Path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fsError("mkdir", e.Path, err)
	}
	tmp := target + tempSuffix
	if err := os.WriteFile(tmp, e.Data, 0o644); err != nil {
		return "", fsError("stage", e.Path, err)
	}
	return tmp, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.file(path)); err != nil {
		return fsError("delete", path, err)
	}
	return nil
}

// List returns the regular files directly under prefix. A missing directory
// is an empty listing.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirents, err := os.ReadDir(s.file(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fsError("list", prefix, err)
	}
	dir := strings.Trim(filepath.ToSlash(prefix), "/")
	var paths []string
	for _, d := range dirents {
		if d.IsDir() || strings.HasSuffix(d.Name(), tempSuffix) {
			continue
		}
		paths = append(paths, strings.TrimPrefix(dir+"/"+d.Name(), "/"))
	}
	return paths, nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.file(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fsError("stat", path, err)
	}
}
