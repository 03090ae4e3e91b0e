package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// LocalStorage implements ObjectStorage using the local filesystem.
// An empty base path means object paths are filesystem paths.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage rooted at basePath.
// The base directory is created if it does not exist.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// localObject is an opened local file.
type localObject struct {
	*os.File
	size int64
}

func (o *localObject) Size() int64 {
	return o.size
}

// Open opens a local file for reading.
func (l *LocalStorage) Open(ctx context.Context, objectPath string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := l.Stat(ctx, objectPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(l.fullPath(objectPath))
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "open "+objectPath, err)
	}
	return &localObject{File: f, size: info.Size}, nil
}

// Stat returns the size of a regular file. Directories are not objects.
func (l *LocalStorage) Stat(ctx context.Context, objectPath string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	info, err := os.Stat(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, objectPath)
		}
		return ObjectInfo{}, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "stat "+objectPath, err)
	}
	if info.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%w: %s is a directory", ErrObjectNotFound, objectPath)
	}
	return ObjectInfo{Path: objectPath, Size: info.Size()}, nil
}

// Exists checks if an object exists in local storage.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := l.Stat(ctx, objectPath)
	if err != nil {
		if stacerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Put writes data to a local file, creating parent directories.
func (l *LocalStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed, "mkdir for "+objectPath, err)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed, "write "+objectPath, err)
	}
	return nil
}

// fullPath returns the full filesystem path for an object.
func (l *LocalStorage) fullPath(objectPath string) string {
	if l.basePath == "" {
		return filepath.FromSlash(objectPath)
	}
	return filepath.Join(l.basePath, filepath.FromSlash(objectPath))
}

// ListObjects returns all files under the given prefix directory.
func (l *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchDir := l.fullPath(prefix)
	var objects []ObjectInfo

	err := filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // prefix doesn't exist, return empty list
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		objectPath := path
		if l.basePath != "" {
			rel, err := filepath.Rel(l.basePath, path)
			if err != nil {
				return err
			}
			objectPath = rel
		}
		objects = append(objects, ObjectInfo{Path: filepath.ToSlash(objectPath), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeListFailed, "list "+prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}
