// Package local provides a local filesystem blob backend.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/draftdesk/draftdesk/internal/blob"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath string `json:"root_path"`
}

// Backend implements blob.Backend using the local filesystem.
type Backend struct {
	rootPath string
}

// New creates a new local filesystem backend, creating the root directory
// if needed.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
		if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
			return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Backend{rootPath: cfg.RootPath}, nil
}

func (b *Backend) fullPath(key string) string {
	return filepath.Join(b.rootPath, filepath.Base(key))
}

// Put writes content to the filesystem atomically: the object appears under
// its final name only after a temp-file write and rename both succeed, so a
// concurrent Open never sees partial content.
func (b *Backend) Put(_ context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation("local", "put", time.Since(start)) }()

	tmp, err := os.CreateTemp(b.rootPath, ".draftdesk-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if size >= 0 && n != size {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: short write: %d of %d bytes", key, n, size)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, b.fullPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}
	return nil
}

// Open reads an object from the filesystem.
func (b *Backend) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation("local", "open", time.Since(start)) }()

	f, err := os.Open(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, blob.ErrNotExist
		}
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", key, err)
	}
	return f, info.Size(), nil
}

// Delete removes an object. Missing keys are ignored.
func (b *Backend) Delete(_ context.Context, key string) error {
	start := time.Now()
	defer func() { metrics.RecordStorageOperation("local", "delete", time.Since(start)) }()

	err := os.Remove(b.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Exists checks whether an object is stored under key.
func (b *Backend) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }
