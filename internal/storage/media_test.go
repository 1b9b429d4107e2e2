package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMediaStore_SaveAndRemove(t *testing.T) {
	store, err := NewMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewMediaStore error: %v", err)
	}

	key, err := store.Save("photo.JPG", []byte("image data"))
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("key %q does not keep the file extension", key)
	}
	if strings.Contains(key, string(filepath.Separator)) {
		t.Fatalf("key %q contains a path separator", key)
	}

	data, err := os.ReadFile(store.FilePath(key))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "image data" {
		t.Fatalf("saved data = %q, want %q", data, "image data")
	}

	if err := store.Remove(key); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := os.Stat(store.FilePath(key)); !os.IsNotExist(err) {
		t.Fatalf("file still exists after Remove")
	}
}

func TestMediaStore_SaveUniqueKeys(t *testing.T) {
	store, err := NewMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewMediaStore error: %v", err)
	}

	a, err := store.Save("photo.jpg", []byte("a"))
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	b, err := store.Save("photo.jpg", []byte("b"))
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if a == b {
		t.Fatalf("keys for identical filenames must differ, got %q twice", a)
	}
}

func TestMediaStore_RemoveMissingFile(t *testing.T) {
	store, err := NewMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewMediaStore error: %v", err)
	}

	if err := store.Remove("no-such-file.jpg"); err != nil {
		t.Fatalf("Remove of missing file must not fail, got %v", err)
	}
	if err := store.Remove(""); err != nil {
		t.Fatalf("Remove of empty key must not fail, got %v", err)
	}
}

func TestNewMediaStore_EmptyPath(t *testing.T) {
	if _, err := NewMediaStore("  "); err == nil {
		t.Fatalf("expected error for blank base path")
	}
}
