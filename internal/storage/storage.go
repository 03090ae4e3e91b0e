// Package storage provides object storage abstractions for reading datasets
// and writing catalog documents.
package storage

import (
	"context"
	"io"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = stacerrors.NewNotFound(stacerrors.CodeObjectNotFound, "object not found")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	// Path is the object path within the storage, without scheme or bucket.
	Path string
	// Size is the object size in bytes.
	Size int64
}

// Object is an opened object supporting random access reads.
type Object interface {
	io.ReaderAt
	io.ReadSeeker
	io.Closer
	// Size returns the total size of the object in bytes.
	Size() int64
}

// ObjectStorage abstracts cloud object storage operations.
// Implementations include S3, GCS, Azure Blob, HTTP and the local filesystem.
type ObjectStorage interface {
	// Open opens an object for random access reads.
	// Reads issued through the returned object use ctx.
	Open(ctx context.Context, objectPath string) (Object, error)

	// Stat returns information about a single object.
	// Returns ErrObjectNotFound when no object exists at objectPath.
	Stat(ctx context.Context, objectPath string) (ObjectInfo, error)

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all objects under the given prefix, sorted by path.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Put writes data to objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error
}
