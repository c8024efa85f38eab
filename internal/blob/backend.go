// Package blob defines the Backend interface for attachment content storage.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Open and Exists-dependent paths when no object
// is stored under the requested key.
var ErrNotExist = errors.New("object does not exist")

// Backend is the interface for blob storage backends.
// Implementations handle raw object I/O (local filesystem, S3). Descriptor
// metadata is handled separately by a metadata.Store.
//
// Put must be atomic from a reader's point of view: a concurrent Open never
// observes a half-written object. Objects are immutable after creation, so
// per-key locking is not required.
type Backend interface {
	// Put stores body under key. size is the expected byte count.
	Put(ctx context.Context, key string, body io.Reader, size int64) error

	// Open returns a reader for the object and its total size.
	// Returns ErrNotExist when no object is stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
