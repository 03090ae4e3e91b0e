package storage

import (
	"context"
	"io"
	"strings"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// Scheme identifies a storage backend.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeGCS   Scheme = "gs"
	SchemeAzure Scheme = "abfs"
	SchemeHTTP  Scheme = "http"
)

// Location is a parsed dataset or output URI.
type Location struct {
	Scheme Scheme
	// Container is the bucket or container name; empty for file and http.
	Container string
	// Account is the Azure storage account when written as container@account.
	Account string
	// Path is the object path or prefix; for http it is the full URL.
	Path string
}

// ParseURI splits uri into its backend, container and object path.
// Paths without a scheme are local filesystem paths.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "empty URI")
	}

	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Path: uri}, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		return Location{Scheme: SchemeFile, Path: rest}, nil
	case "http", "https":
		return Location{Scheme: SchemeHTTP, Path: uri}, nil
	case "s3", "s3a":
		container, key := splitContainer(rest)
		return Location{Scheme: SchemeS3, Container: container, Path: key}, nil
	case "gs", "gcs":
		container, key := splitContainer(rest)
		return Location{Scheme: SchemeGCS, Container: container, Path: key}, nil
	case "abfs", "abfss", "az", "adl":
		container, key := splitContainer(rest)
		loc := Location{Scheme: SchemeAzure, Container: container, Path: key}
		if c, host, found := strings.Cut(container, "@"); found {
			loc.Container = c
			loc.Account, _, _ = strings.Cut(host, ".")
		}
		return loc, nil
	default:
		return Location{}, stacerrors.NewConnectionError(stacerrors.CodeUnsupportedScheme,
			"unsupported storage scheme "+scheme+"://", nil)
	}
}

func splitContainer(rest string) (string, string) {
	container, key, _ := strings.Cut(rest, "/")
	return container, strings.TrimSuffix(key, "/")
}

// Resolve parses uri and creates the storage backend serving it.
// It returns the backend and the object path within it.
func Resolve(ctx context.Context, uri string, opts map[string]string) (ObjectStorage, string, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, "", err
	}
	if opts == nil {
		opts = map[string]string{}
	}

	switch loc.Scheme {
	case SchemeFile:
		store, err := NewLocalStorage("")
		if err != nil {
			return nil, "", err
		}
		return store, loc.Path, nil
	case SchemeHTTP:
		return NewHTTPStorage(nil, opts), loc.Path, nil
	case SchemeS3:
		store, err := NewS3Storage(ctx, loc.Container, S3ConfigFromOptions(opts))
		if err != nil {
			return nil, "", err
		}
		return store, loc.Path, nil
	case SchemeGCS:
		store, err := NewGCSStorage(ctx, loc.Container, GCSConfigFromOptions(opts))
		if err != nil {
			return nil, "", err
		}
		return store, loc.Path, nil
	case SchemeAzure:
		cfg := AzureConfigFromOptions(opts)
		if cfg.AccountName == "" {
			cfg.AccountName = loc.Account
		}
		store, err := NewAzureStorage(ctx, loc.Container, cfg)
		if err != nil {
			return nil, "", err
		}
		return store, loc.Path, nil
	}
	return nil, "", stacerrors.NewConnectionError(stacerrors.CodeUnsupportedScheme,
		"unsupported storage scheme "+string(loc.Scheme), nil)
}

// JoinPath joins object path elements with forward slashes.
// For http locations the base is a URL and is joined the same way.
func JoinPath(base string, elem ...string) string {
	parts := make([]string, 0, len(elem)+1)
	if b := strings.TrimSuffix(base, "/"); b != "" {
		parts = append(parts, b)
	}
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}

// ReadAll opens an object and reads its whole content.
func ReadAll(ctx context.Context, store ObjectStorage, objectPath string) ([]byte, error) {
	obj, err := store.Open(ctx, objectPath)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "read "+objectPath, err)
	}
	return data, nil
}

func optionBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
