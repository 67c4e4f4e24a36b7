package localfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPutWritesFile(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir, time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	location, err := storage.Put(context.Background(), "note.png", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasSuffix(location, "note.png") {
		t.Fatalf("unexpected location %q", location)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "note.png"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(raw) != "png" {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestPutSweepsExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir, time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stale := filepath.Join(dir, "stale.png")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	if _, err := storage.Put(context.Background(), "fresh.png", "image/png", []byte("new")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "fresh.png")); err != nil {
		t.Fatalf("expected fresh file to exist: %v", err)
	}
}

func TestPutKeepsKeyInsideBasePath(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir, time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := storage.Put(context.Background(), "../escape.png", "image/png", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
		t.Fatalf("expected key to be confined to base path: %v", err)
	}
}
