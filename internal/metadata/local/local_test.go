package local

import (
	"context"
	"testing"
	"time"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &metadata.Descriptor{
		ID:        "m1abc2xyz",
		Name:      "报告 final.docx",
		MIMEType:  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Size:      2048,
		Extension: ".docx",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Put(ctx, d); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != d.Name {
		t.Errorf("name did not round-trip: %q != %q", got.Name, d.Name)
	}
	if got.Size != d.Size {
		t.Errorf("size mismatch: %d != %d", got.Size, d.Size)
	}
	if got.Extension != ".docx" {
		t.Errorf("extension mismatch: %q", got.Extension)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if ok, _ := s.Exists(ctx, "nothing"); ok {
		t.Error("exists should be false for missing id")
	}

	s.Put(ctx, &metadata.Descriptor{ID: "present", Name: "a", Extension: ".txt"})
	if ok, _ := s.Exists(ctx, "present"); !ok {
		t.Error("exists should be true after put")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, &metadata.Descriptor{ID: "victim", Name: "v", Extension: ".bin"})

	found, err := s.Delete(ctx, "victim")
	if err != nil || !found {
		t.Fatalf("first delete: found=%v err=%v", found, err)
	}

	found, err = s.Delete(ctx, "victim")
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if found {
		t.Error("second delete should report nothing deleted")
	}
}
