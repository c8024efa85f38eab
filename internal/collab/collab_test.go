package collab

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/draftdesk/draftdesk/internal/apperr"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "notes", []byte("v1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := store.Load(ctx, "notes")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "v1" {
		t.Errorf("Load = %q, want v1", data)
	}

	if err := store.Save(ctx, "notes", []byte("v2")); err != nil {
		t.Fatalf("Save v2: %v", err)
	}
	data, err = store.Load(ctx, "notes")
	if err != nil {
		t.Fatalf("Load v2: %v", err)
	}
	if string(data) != "v2" {
		t.Errorf("overwrite not visible: got %q", data)
	}
}

func TestLocalStoreMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "never-stored")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestLocalStoreArbitraryNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	names := []string{"../escape", "a/b/c", "проект 2025", "with\x00null"}
	for _, name := range names {
		if err := store.Save(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Save(%q): %v", name, err)
		}
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != len(names) {
		t.Fatalf("List returned %d documents, want %d", len(infos), len(names))
	}
	for _, name := range names {
		data, err := store.Load(ctx, name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		if string(data) != name {
			t.Errorf("Load(%q) = %q", name, data)
		}
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "doomed", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	found, err := store.Delete(ctx, "doomed")
	if err != nil || !found {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", found, err)
	}
	found, err = store.Delete(ctx, "doomed")
	if err != nil || found {
		t.Fatalf("repeat Delete = (%v, %v), want (false, nil)", found, err)
	}
	if _, err := store.Load(ctx, "doomed"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("deleted document still loads: %v", err)
	}
}

func TestBridgeFetchAbsent(t *testing.T) {
	bridge := NewBridge(newTestStore(t))

	data, err := bridge.Fetch(context.Background(), "fresh-document")
	if err != nil {
		t.Fatalf("Fetch of absent document errored: %v", err)
	}
	if data != nil {
		t.Errorf("Fetch of absent document = %v, want nil", data)
	}
}

func TestBridgeStoreThenFetch(t *testing.T) {
	bridge := NewBridge(newTestStore(t))
	ctx := context.Background()

	if err := bridge.Store(ctx, "doc", []byte("state-1")); err != nil {
		t.Fatalf("Store v1: %v", err)
	}
	if err := bridge.Store(ctx, "doc", []byte("state-2")); err != nil {
		t.Fatalf("Store v2: %v", err)
	}

	data, err := bridge.Fetch(ctx, "doc")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(data, []byte("state-2")) {
		t.Errorf("Fetch = %q, want state-2", data)
	}
}

type failingStore struct {
	DocumentStore
}

func (f *failingStore) Save(ctx context.Context, name string, data []byte) error {
	return errors.New("disk on fire")
}

func TestBridgeStoreFault(t *testing.T) {
	bridge := NewBridge(&failingStore{DocumentStore: newTestStore(t)})
	err := bridge.Store(context.Background(), "doc", []byte("state"))
	if !apperr.IsCode(err, apperr.CodeStorageFault) {
		t.Errorf("expected STORAGE_FAULT, got %v", err)
	}
}
