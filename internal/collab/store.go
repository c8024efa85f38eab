// Package collab persists collaborative document snapshots and bridges
// them to live editing sessions.
//
// Documents are opaque binary state blobs keyed by name. The engine
// driving the sessions treats them as byte arrays; nothing here inspects
// their contents.
package collab

import (
	"context"
	"time"
)

// Info describes one stored document snapshot.
type Info struct {
	Name      string
	Size      int64
	UpdatedAt time.Time
}

// DocumentStore persists document snapshots. Save is a last-write-wins
// upsert; concurrent writers race and the later write stands.
type DocumentStore interface {
	// Load returns the snapshot stored under name, or a NotFound error
	// when none exists.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save stores data under name, replacing any previous snapshot.
	Save(ctx context.Context, name string, data []byte) error

	// List returns all stored snapshots.
	List(ctx context.Context) ([]Info, error)

	// Delete removes the snapshot under name, reporting whether one
	// existed.
	Delete(ctx context.Context, name string) (bool, error)

	Close() error
}
