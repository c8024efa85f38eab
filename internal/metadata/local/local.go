// Package local provides a filesystem descriptor store using JSON sidecar
// files, one per attachment id.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/metadata"
)

// Store implements metadata.Store on the local filesystem.
type Store struct {
	dir string
}

// New creates a sidecar store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("sidecar directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create sidecar dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) sidecarPath(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+".json")
}

// Put writes the descriptor sidecar atomically (temp file + rename), so a
// concurrent Get never observes a half-written record.
func (s *Store) Put(_ context.Context, d *metadata.Descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor %s: %w", d.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".draftdesk-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", d.ID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sidecar %s: %w", d.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", d.ID, err)
	}

	if err := os.Rename(tmpName, s.sidecarPath(d.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename sidecar %s: %w", d.ID, err)
	}
	return nil
}

// Get reads the descriptor sidecar for id.
func (s *Store) Get(_ context.Context, id string) (*metadata.Descriptor, error) {
	data, err := os.ReadFile(s.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Newf(apperr.CodeNotFound, "file not found: %s", id)
		}
		return nil, fmt.Errorf("read sidecar %s: %w", id, err)
	}

	var d metadata.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", id, err)
	}
	return &d, nil
}

// Exists reports whether a sidecar is stored under id.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat sidecar %s: %w", id, err)
	}
	return true, nil
}

// Delete removes the sidecar for id. Missing ids return (false, nil).
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	err := os.Remove(s.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete sidecar %s: %w", id, err)
	}
	return true, nil
}

// Close is a no-op for local stores.
func (s *Store) Close() error { return nil }
