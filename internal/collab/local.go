package collab

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

const snapshotExt = ".bin"

// LocalStore persists document snapshots as files on disk. Document names
// are hex encoded so arbitrary names can never escape the root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, hex.EncodeToString([]byte(name))+snapshotExt)
}

func (s *LocalStore) Load(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		metrics.RecordStorageOperation("local", "doc_load", time.Since(start))
		return nil, apperr.Newf(apperr.CodeNotFound, "document not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	metrics.RecordStorageOperation("local", "doc_load", time.Since(start))
	return data, nil
}

// Save writes the snapshot atomically: a rename either fully replaces the
// previous snapshot or leaves it untouched.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	tmp, err := os.CreateTemp(s.root, ".draftdesk-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write document %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store document %s: %w", name, err)
	}

	metrics.RecordStorageOperation("local", "doc_save", time.Since(start))
	return nil
}

func (s *LocalStore) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != snapshotExt {
			continue
		}
		raw, err := hex.DecodeString(e.Name()[:len(e.Name())-len(snapshotExt)])
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:      string(raw),
			Size:      fi.Size(),
			UpdatedAt: fi.ModTime(),
		})
	}
	return infos, nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) (bool, error) {
	err := os.Remove(s.path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", name, err)
	}
	return true, nil
}

func (s *LocalStore) Close() error {
	return nil
}
