// Package registry implements the attachment lifecycle: save, fetch and
// delete of descriptor/blob pairs.
package registry

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/blob"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metadata"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

const (
	idAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyz"
	idRandomLen     = 9
	maxIDAttempts   = 5
	replacementRune = "�"
)

// Registry composes a metadata store and a blob backend into the attachment
// lifecycle. Ids are generated fresh per upload and never reused, so
// concurrent saves never contend on the same key.
type Registry struct {
	meta        metadata.Store
	blobs       blob.Backend
	maxFileSize int64
}

// New creates a registry. maxFileSize bounds a single attachment's size;
// zero means unlimited.
func New(meta metadata.Store, blobs blob.Backend, maxFileSize int64) *Registry {
	return &Registry{
		meta:        meta,
		blobs:       blobs,
		maxFileSize: maxFileSize,
	}
}

// Save stores the content of r as a new attachment and returns its
// descriptor. The blob is written first and the descriptor only after the
// blob write succeeds; a failed descriptor write rolls the blob back, so a
// crash mid-upload never leaves a descriptor pointing at missing bytes.
func (r *Registry) Save(ctx context.Context, body io.Reader, suppliedName, mimeType string) (*metadata.Descriptor, error) {
	// Reject oversized bodies before any partial data reaches storage.
	reader := body
	if r.maxFileSize > 0 {
		reader = io.LimitReader(body, r.maxFileSize+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageFault, "read upload body", err)
	}
	if r.maxFileSize > 0 && int64(len(content)) > r.maxFileSize {
		metrics.RecordUpload(0, false)
		return nil, apperr.Newf(apperr.CodePayloadTooLarge,
			"file too large: max %d bytes", r.maxFileSize)
	}

	name := normalizeName(suppliedName)
	desc := &metadata.Descriptor{
		Name:      name,
		MIMEType:  mimeType,
		Size:      int64(len(content)),
		Extension: filepath.Ext(name),
		CreatedAt: time.Now().UTC(),
	}

	id, err := r.freshID(ctx, desc.Extension)
	if err != nil {
		return nil, err
	}
	desc.ID = id

	if err := r.blobs.Put(ctx, desc.BlobKey(), bytes.NewReader(content), desc.Size); err != nil {
		metrics.RecordUpload(0, false)
		return nil, apperr.Wrap(apperr.CodeStorageFault, "write blob", err)
	}

	if err := r.meta.Put(ctx, desc); err != nil {
		// Roll back the blob so no half-committed pair is reachable.
		if delErr := r.blobs.Delete(ctx, desc.BlobKey()); delErr != nil {
			logging.Error("blob rollback failed after metadata error",
				zap.String("id", desc.ID), zap.Error(delErr))
		}
		metrics.RecordUpload(0, false)
		return nil, apperr.Wrap(apperr.CodeStorageFault, "write metadata", err)
	}

	metrics.RecordUpload(desc.Size, true)
	logging.Info("attachment saved",
		zap.String("id", desc.ID),
		zap.String("name", desc.Name),
		zap.Int64("size", desc.Size))
	return desc, nil
}

// Get returns the descriptor for id without touching the blob.
func (r *Registry) Get(ctx context.Context, id string) (*metadata.Descriptor, error) {
	return r.meta.Get(ctx, id)
}

// Open returns the blob reader and descriptor for id. A descriptor whose
// blob is missing is a corrupt pair: it is reported to the caller as a
// plain not-found but logged loudly as a corruption signal.
func (r *Registry) Open(ctx context.Context, id string) (io.ReadCloser, *metadata.Descriptor, error) {
	desc, err := r.meta.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, _, err := r.blobs.Open(ctx, desc.BlobKey())
	if err != nil {
		if err == blob.ErrNotExist {
			logging.Error("descriptor present but blob missing (corrupt pair)",
				zap.String("id", id),
				zap.String("key", desc.BlobKey()))
			return nil, nil, apperr.Newf(apperr.CodeNotFound, "file not found: %s", id)
		}
		return nil, nil, apperr.Wrap(apperr.CodeStorageFault, "open blob", err)
	}
	return reader, desc, nil
}

// Delete removes the blob first, then the descriptor. Returns false when
// nothing was stored under id; deleting a missing id is not an error.
func (r *Registry) Delete(ctx context.Context, id string) (bool, error) {
	desc, err := r.meta.Get(ctx, id)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := r.blobs.Delete(ctx, desc.BlobKey()); err != nil {
		return false, apperr.Wrap(apperr.CodeStorageFault, "delete blob", err)
	}

	found, err := r.meta.Delete(ctx, id)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeStorageFault, "delete metadata", err)
	}
	return found, nil
}

// freshID generates an id (base36 millisecond timestamp + random suffix)
// and verifies it collides with neither a descriptor nor a blob before use.
func (r *Registry) freshID(ctx context.Context, ext string) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := strconv.FormatInt(time.Now().UnixMilli(), 36) + randomSuffix(idRandomLen)

		if exists, err := r.meta.Exists(ctx, id); err != nil {
			return "", apperr.Wrap(apperr.CodeStorageFault, "check id collision", err)
		} else if exists {
			continue
		}
		if exists, err := r.blobs.Exists(ctx, id+ext); err != nil {
			return "", apperr.Wrap(apperr.CodeStorageFault, "check blob collision", err)
		} else if exists {
			continue
		}
		return id, nil
	}
	return "", apperr.New(apperr.CodeStorageFault, "could not generate a unique attachment id")
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out)
}

// normalizeName strips any client-supplied path components and coerces the
// name to valid UTF-8 so it round-trips through storage and HTTP headers.
func normalizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ToValidUTF8(name, replacementRune)
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
