package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	blobs := []musicmarket.Blob{
		{Name: "track.mp3", Data: []byte("hello fs")},
		{Name: "metadata.json", Data: []byte(`{"name":"Song A"}`)},
	}

	cid, err := backend.Put(ctx, "btl-Song A", blobs)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := backend.Get(ctx, cid, "track.mp3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != "hello fs" {
		t.Fatalf("get mismatch: %q", string(got))
	}

	label, err := os.ReadFile(filepath.Join(tmp, cid, nameFile))
	if err != nil || string(label) != "btl-Song A" {
		t.Fatalf("expected batch name file, got %q err=%v", label, err)
	}

	// Same content again is a no-op
	again, err := backend.Put(ctx, "other", blobs)
	if err != nil || again != cid {
		t.Fatalf("expected same cid %s, got %s err=%v", cid, again, err)
	}

	entries, _ := os.ReadDir(filepath.Join(tmp, stagingDir))
	if len(entries) != 0 {
		t.Fatalf("expected empty staging dir, got %d entries", len(entries))
	}
}

func TestFSBackend_GetRejectsTraversal(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	for _, tc := range []struct{ cid, path string }{
		{"..", "etc"},
		{"bafk", "../x"},
		{stagingDir, "x"},
		{"bafk", nameFile},
		{"", "x"},
	} {
		if _, err := backend.Get(ctx, tc.cid, tc.path); err != musicmarket.ErrObjectNotFound {
			t.Fatalf("expected not found for %q/%q, got %v", tc.cid, tc.path, err)
		}
	}
}

func TestFSBackend_FailedBatchLeavesNothing(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	_, err = backend.Put(context.Background(), "dup", []musicmarket.Blob{
		{Name: "a.mp3", Data: []byte("1")},
		{Name: "a.mp3", Data: []byte("2")},
	})
	if err == nil {
		t.Fatal("expected rejection for duplicate names")
	}

	entries, _ := os.ReadDir(tmp)
	for _, e := range entries {
		if e.Name() != stagingDir {
			t.Fatalf("unexpected entry %s after failed put", e.Name())
		}
	}
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}
