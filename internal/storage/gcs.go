package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// GCSStorage implements ObjectStorage for Google Cloud Storage.
type GCSStorage struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
}

// GCSConfig holds configuration for GCS storage.
type GCSConfig struct {
	// Token is "anon" for unauthenticated access or a service account key file.
	Token string
	// CredentialsJSON is an inline service account key.
	CredentialsJSON string
	// Endpoint overrides the storage API endpoint (fake-gcs-server, etc.).
	Endpoint string
	// BillingProject is charged for requester-pays buckets.
	BillingProject string
}

// GCSConfigFromOptions builds a GCSConfig from gcsfs-style storage options:
// token, credentials, endpoint_url, project.
func GCSConfigFromOptions(opts map[string]string) GCSConfig {
	return GCSConfig{
		Token:           opts["token"],
		CredentialsJSON: opts["credentials"],
		Endpoint:        opts["endpoint_url"],
		BillingProject:  opts["project"],
	}
}

// NewGCSStorage creates a GCS client for bucket.
func NewGCSStorage(ctx context.Context, bucket string, cfg GCSConfig) (*GCSStorage, error) {
	opts := []option.ClientOption{option.WithScopes(gcs.ScopeReadWrite)}

	switch {
	case cfg.Token == "anon":
		opts = append(opts, option.WithoutAuthentication())
	case cfg.Token != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Token))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeBackendInit, "failed to create google cloud client", err)
	}

	handle := client.Bucket(bucket)
	if cfg.BillingProject != "" {
		handle = handle.UserProject(cfg.BillingProject)
	}
	return &GCSStorage{client: client, bucket: handle, name: bucket}, nil
}

// Open opens a GCS object for ranged reads.
func (g *GCSStorage) Open(ctx context.Context, objectPath string) (Object, error) {
	info, err := g.Stat(ctx, objectPath)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		r, err := g.bucket.Object(objectPath).NewRangeReader(ctx, offset, length)
		if err != nil {
			if errors.Is(err, gcs.ErrObjectNotExist) {
				return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, g.name, objectPath)
			}
			return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed,
				fmt.Sprintf("read gs://%s/%s", g.name, objectPath), err)
		}
		return r, nil
	}
	return newRangeObject(ctx, info.Size, fetch), nil
}

// Stat returns the size of a GCS object.
func (g *GCSStorage) Stat(ctx context.Context, objectPath string) (ObjectInfo, error) {
	attrs, err := g.bucket.Object(objectPath).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ObjectInfo{}, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, g.name, objectPath)
		}
		return ObjectInfo{}, stacerrors.NewConnectionError(stacerrors.CodeReadFailed,
			fmt.Sprintf("stat gs://%s/%s", g.name, objectPath), err)
	}
	return ObjectInfo{Path: objectPath, Size: attrs.Size}, nil
}

// Exists checks if an object exists in the bucket.
func (g *GCSStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := g.Stat(ctx, objectPath)
	if err != nil {
		if stacerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects returns all objects under the given prefix.
func (g *GCSStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []ObjectInfo
	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, stacerrors.NewConnectionError(stacerrors.CodeListFailed,
				fmt.Sprintf("list gs://%s/%s", g.name, prefix), err)
		}
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		objects = append(objects, ObjectInfo{Path: attrs.Name, Size: attrs.Size})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

// Put writes data to a GCS object.
func (g *GCSStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	w := g.bucket.Object(objectPath).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed,
			fmt.Sprintf("write gs://%s/%s", g.name, objectPath), err)
	}
	if err := w.Close(); err != nil {
		return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed,
			fmt.Sprintf("write gs://%s/%s", g.name, objectPath), err)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
