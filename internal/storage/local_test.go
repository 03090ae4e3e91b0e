package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

func TestLocalStorage_PutOpen(t *testing.T) {
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	content := []byte("hello world")

	// Test Put creates parent directories
	objectPath := "items/nested/object.json"
	if err := storage.Put(ctx, objectPath, content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	obj, err := storage.Open(ctx, objectPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer obj.Close()

	if obj.Size() != int64(len(content)) {
		t.Errorf("size mismatch: got %d, want %d", obj.Size(), len(content))
	}

	buf := make([]byte, 5)
	if _, err := obj.ReadAt(buf, 6); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf) != "world" {
		t.Errorf("ReadAt mismatch: got %q, want %q", buf, "world")
	}

	all, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(all) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", all, content)
	}
}

func TestLocalStorage_AbsolutePaths(t *testing.T) {
	storage, err := NewLocalStorage("")
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	path := filepath.Join(t.TempDir(), "data.parquet")
	if err := os.WriteFile(path, []byte("PAR1"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	info, err := storage.Stat(context.Background(), path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size != 4 {
		t.Errorf("expected size 4, got %d", info.Size)
	}
}

func TestLocalStorage_StatNotFound(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	_, err = storage.Stat(ctx, "nonexistent/object.txt")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	if !stacerrors.IsNotFound(err) {
		t.Errorf("expected NotFound category, got %v", err)
	}

	exists, err := storage.Exists(ctx, "nonexistent/object.txt")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist")
	}
}

func TestLocalStorage_DirectoryIsNotAnObject(t *testing.T) {
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "dataset"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	_, err = storage.Stat(context.Background(), "dataset")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound for a directory, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	baseDir := t.TempDir()
	storage, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	for _, p := range []string{"ds/part.1.parquet", "ds/part.0.parquet", "ds/_metadata", "other/x.parquet"} {
		if err := storage.Put(ctx, p, []byte(p)); err != nil {
			t.Fatalf("Put %s failed: %v", p, err)
		}
	}

	objects, err := storage.ListObjects(ctx, "ds")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}

	want := []string{"ds/_metadata", "ds/part.0.parquet", "ds/part.1.parquet"}
	if len(objects) != len(want) {
		t.Fatalf("expected %d objects, got %d: %v", len(want), len(objects), objects)
	}
	for i, obj := range objects {
		if obj.Path != want[i] {
			t.Errorf("object %d: got %q, want %q", i, obj.Path, want[i])
		}
	}

	empty, err := storage.ListObjects(ctx, "missing")
	if err != nil {
		t.Fatalf("ListObjects on missing prefix failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty listing, got %v", empty)
	}
}

func TestReadAll(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	if err := storage.Put(ctx, "collection.json", []byte(`{"id":"x"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := ReadAll(ctx, storage, "collection.json")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != `{"id":"x"}` {
		t.Errorf("unexpected content %q", data)
	}
}
