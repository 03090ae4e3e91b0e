package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// AzureStorage implements ObjectStorage for one Azure Blob Storage container.
type AzureStorage struct {
	client    *azblob.Client
	account   string
	container string
}

// AzureConfig holds configuration for Azure Blob Storage.
type AzureConfig struct {
	// AccountName is the storage account, e.g. ai4edataeuwest.
	AccountName string
	// AccountKey enables shared key authentication.
	AccountKey string
	// SASToken is appended to the service URL.
	SASToken string
	// ConnectionString takes precedence over every other setting.
	ConnectionString string
	// Anonymous reads public containers without credentials.
	Anonymous bool
	// Endpoint overrides the service URL (Azurite, sovereign clouds).
	Endpoint string
}

// AzureConfigFromOptions builds an AzureConfig from adlfs-style storage
// options: account_name, account_key, sas_token, connection_string, anon,
// endpoint_url.
func AzureConfigFromOptions(opts map[string]string) AzureConfig {
	return AzureConfig{
		AccountName:      opts["account_name"],
		AccountKey:       opts["account_key"],
		SASToken:         strings.TrimPrefix(opts["sas_token"], "?"),
		ConnectionString: opts["connection_string"],
		Anonymous:        optionBool(opts["anon"]),
		Endpoint:         opts["endpoint_url"],
	}
}

func (c AzureConfig) serviceURL() string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/") + "/"
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.AccountName)
}

// NewAzureStorage creates a client for container.
func NewAzureStorage(ctx context.Context, container string, cfg AzureConfig) (*AzureStorage, error) {
	if cfg.ConnectionString == "" && cfg.AccountName == "" && cfg.Endpoint == "" {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeBackendInit,
			"azure storage requires the account_name storage option", nil)
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err == nil {
			client, err = azblob.NewClientWithSharedKeyCredential(cfg.serviceURL(), cred, nil)
		}
	case cfg.SASToken != "":
		client, err = azblob.NewClientWithNoCredential(cfg.serviceURL()+"?"+cfg.SASToken, nil)
	case cfg.Anonymous:
		client, err = azblob.NewClientWithNoCredential(cfg.serviceURL(), nil)
	default:
		var cred *azidentity.DefaultAzureCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err == nil {
			client, err = azblob.NewClient(cfg.serviceURL(), cred, nil)
		}
	}
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeBackendInit, "failed to create azure blob client", err)
	}

	return &AzureStorage{client: client, account: cfg.AccountName, container: container}, nil
}

func (a *AzureStorage) uri(objectPath string) string {
	return fmt.Sprintf("abfs://%s/%s", a.container, objectPath)
}

// Open opens a blob for ranged reads.
func (a *AzureStorage) Open(ctx context.Context, objectPath string) (Object, error) {
	info, err := a.Stat(ctx, objectPath)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		resp, err := a.client.DownloadStream(ctx, a.container, objectPath, &azblob.DownloadStreamOptions{
			Range: azblob.HTTPRange{Offset: offset, Count: length},
		})
		if err != nil {
			if isAzureNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, a.uri(objectPath))
			}
			return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "download "+a.uri(objectPath), err)
		}
		return resp.Body, nil
	}
	return newRangeObject(ctx, info.Size, fetch), nil
}

// Stat returns the size of a blob.
func (a *AzureStorage) Stat(ctx context.Context, objectPath string) (ObjectInfo, error) {
	blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(objectPath)
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, a.uri(objectPath))
		}
		return ObjectInfo{}, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "stat "+a.uri(objectPath), err)
	}

	var size int64
	if props.ContentLength != nil {
		size = *props.ContentLength
	}
	return ObjectInfo{Path: objectPath, Size: size}, nil
}

// Exists checks if a blob exists in the container.
func (a *AzureStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := a.Stat(ctx, objectPath)
	if err != nil {
		if stacerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects returns all blobs under the given prefix.
func (a *AzureStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []ObjectInfo
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, stacerrors.NewConnectionError(stacerrors.CodeListFailed, "list "+a.uri(prefix), err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			objects = append(objects, ObjectInfo{Path: *item.Name, Size: size})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

// Put uploads data as a block blob.
func (a *AzureStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	if _, err := a.client.UploadBuffer(ctx, a.container, objectPath, data, nil); err != nil {
		return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed, "upload "+a.uri(objectPath), err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return false
}
