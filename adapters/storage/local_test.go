package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/borelg/10x15cm-Photo-Formatter/core"
)

func TestLocal_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, 0o644)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	key := core.StorageKey{Path: "photo_10x15.jpg"}
	payload := []byte("jpeg bytes")

	if err := l.Put(ctx, key, bytes.NewReader(payload), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := l.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestLocal_PutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	key := core.StorageKey{Path: "out.jpg"}
	if err := l.Put(context.Background(), key, strings.NewReader("data"), nil); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestLocal_ExistsAndDelete(t *testing.T) {
	l, err := NewLocal(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key := core.StorageKey{Path: "a.jpg"}

	ok, err := l.Exists(ctx, key)
	if err != nil || ok {
		t.Fatalf("Exists before put = %v, %v", ok, err)
	}
	if err := l.Put(ctx, key, strings.NewReader("x"), nil); err != nil {
		t.Fatal(err)
	}
	ok, err = l.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists after put = %v, %v", ok, err)
	}
	if err := l.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	ok, _ = l.Exists(ctx, key)
	if ok {
		t.Error("key still exists after delete")
	}
	// Deleting a missing key is not an error.
	if err := l.Delete(ctx, key); err != nil {
		t.Errorf("delete missing key: %v", err)
	}
}

func TestLocal_BucketMapsToSubdirectory(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	key := core.StorageKey{Bucket: "batch-42", Path: "b.jpg"}
	if err := l.Put(context.Background(), key, strings.NewReader("x"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "batch-42", "b.jpg")); err != nil {
		t.Errorf("expected file under bucket subdirectory: %v", err)
	}
}
