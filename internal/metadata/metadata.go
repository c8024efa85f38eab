// Package metadata defines the file descriptor model and the Store
// interface for descriptor persistence.
package metadata

import (
	"context"
	"time"
)

// Descriptor is the stored metadata record describing one uploaded file.
// Descriptors are created atomically with their blob at upload time and are
// never mutated in place.
type Descriptor struct {
	ID        string    `json:"id"`
	Name      string    `json:"fileName"`
	MIMEType  string    `json:"fileType"`
	Size      int64     `json:"fileSize"`
	Extension string    `json:"extension"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlobKey returns the blob store key for this descriptor.
func (d *Descriptor) BlobKey() string {
	return d.ID + d.Extension
}

// Store is the interface for descriptor persistence.
type Store interface {
	// Put persists a new descriptor. The id must not already exist.
	Put(ctx context.Context, d *Descriptor) error

	// Get returns the descriptor for id, or an apperr.CodeNotFound error.
	Get(ctx context.Context, id string) (*Descriptor, error)

	// Exists reports whether a descriptor is stored under id.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes the descriptor for id. Returns false when nothing was
	// stored under id; deleting a missing id is not an error.
	Delete(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
