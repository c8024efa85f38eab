package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/draftdesk/draftdesk/internal/apperr"
	bloblocal "github.com/draftdesk/draftdesk/internal/blob/local"
	metalocal "github.com/draftdesk/draftdesk/internal/metadata/local"
)

func newTestRegistry(t *testing.T, maxSize int64) *Registry {
	t.Helper()
	blobs, err := bloblocal.New(bloblocal.Config{RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("blob backend: %v", err)
	}
	meta, err := metalocal.New(t.TempDir())
	if err != nil {
		t.Fatalf("metadata store: %v", err)
	}
	return New(meta, blobs, maxSize)
}

func TestSaveGetRoundTrip(t *testing.T) {
	r := newTestRegistry(t, 0)
	ctx := context.Background()

	content := []byte("attachment body")
	desc, err := r.Save(ctx, bytes.NewReader(content), "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if desc.ID == "" {
		t.Fatal("empty id")
	}
	if desc.Size != int64(len(content)) {
		t.Errorf("size %d, want %d", desc.Size, len(content))
	}
	if desc.Extension != ".txt" {
		t.Errorf("extension %q, want .txt", desc.Extension)
	}

	got, err := r.Get(ctx, desc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "notes.txt" {
		t.Errorf("name %q", got.Name)
	}
}

func TestSaveNonASCIINameRoundTrip(t *testing.T) {
	r := newTestRegistry(t, 0)
	ctx := context.Background()

	name := "会议纪要 2025 — файл.docx"
	desc, err := r.Save(ctx, strings.NewReader("x"), name, "application/octet-stream")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.Get(ctx, desc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != name {
		t.Errorf("non-ASCII name did not round-trip: %q != %q", got.Name, name)
	}
}

func TestSaveStripsClientPaths(t *testing.T) {
	r := newTestRegistry(t, 0)

	desc, err := r.Save(context.Background(), strings.NewReader("x"), `C:\Users\me\..\secret.txt`, "text/plain")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.ContainsAny(desc.Name, `/\`) {
		t.Errorf("name kept path separators: %q", desc.Name)
	}
}

func TestSaveTooLarge(t *testing.T) {
	r := newTestRegistry(t, 8)

	_, err := r.Save(context.Background(), strings.NewReader("123456789"), "big.bin", "application/octet-stream")
	if !apperr.IsCode(err, apperr.CodePayloadTooLarge) {
		t.Fatalf("expected PAYLOAD_TOO_LARGE, got %v", err)
	}
}

func TestOpenReturnsContent(t *testing.T) {
	r := newTestRegistry(t, 0)
	ctx := context.Background()

	content := []byte("stream me")
	desc, err := r.Save(ctx, bytes.NewReader(content), "s.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	reader, got, err := r.Open(ctx, desc.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	data, _ := io.ReadAll(reader)
	if !bytes.Equal(data, content) {
		t.Errorf("content mismatch: %q", data)
	}
	if got.ID != desc.ID {
		t.Errorf("descriptor mismatch: %s != %s", got.ID, desc.ID)
	}
}

func TestOpenCorruptPairReportsNotFound(t *testing.T) {
	blobs, err := bloblocal.New(bloblocal.Config{RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("blob backend: %v", err)
	}
	meta, err := metalocal.New(t.TempDir())
	if err != nil {
		t.Fatalf("metadata store: %v", err)
	}
	r := New(meta, blobs, 0)
	ctx := context.Background()

	desc, err := r.Save(ctx, strings.NewReader("bytes"), "c.bin", "application/octet-stream")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Remove the blob behind the registry's back.
	if err := blobs.Delete(ctx, desc.BlobKey()); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	_, _, err = r.Open(ctx, desc.ID)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("corrupt pair should read as NOT_FOUND, got %v", err)
	}
}

func TestDeleteThenGet(t *testing.T) {
	r := newTestRegistry(t, 0)
	ctx := context.Background()

	desc, err := r.Save(ctx, strings.NewReader("gone soon"), "d.txt", "text/plain")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := r.Delete(ctx, desc.ID)
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}

	if _, err := r.Get(ctx, desc.ID); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("get after delete should be NOT_FOUND, got %v", err)
	}
}

func TestDeleteNeverIssuedID(t *testing.T) {
	r := newTestRegistry(t, 0)

	found, err := r.Delete(context.Background(), "never-issued")
	if err != nil {
		t.Fatalf("delete of unknown id errored: %v", err)
	}
	if found {
		t.Error("delete of unknown id reported something deleted")
	}
}

func TestConcurrentSavesDistinctIDs(t *testing.T) {
	r := newTestRegistry(t, 0)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			desc, err := r.Save(ctx,
				strings.NewReader(fmt.Sprintf("body-%d", i)),
				fmt.Sprintf("f%d.txt", i), "text/plain")
			if err != nil {
				t.Errorf("save %d: %v", i, err)
				return
			}
			ids <- desc.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}

	// Every saved file must still read back its own content.
	for id := range seen {
		reader, desc, err := r.Open(ctx, id)
		if err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
		data, _ := io.ReadAll(reader)
		reader.Close()
		want := strings.TrimSuffix(strings.TrimPrefix(desc.Name, "f"), ".txt")
		if string(data) != "body-"+want {
			t.Errorf("content overwritten for %s: %q", id, data)
		}
	}
}
