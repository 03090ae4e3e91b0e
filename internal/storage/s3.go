package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// S3Storage implements ObjectStorage for AWS S3 and S3-compatible stores.
// Failed requests are returned as is; nothing is retried.
type S3Storage struct {
	client *s3.Client
	bucket string
	config S3Config
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	// Region is the AWS region for the S3 bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// AccessKeyID, SecretAccessKey and SessionToken set static credentials.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Anonymous disables request signing for public buckets.
	Anonymous bool
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region: "us-east-1",
	}
}

// S3ConfigFromOptions builds an S3Config from fsspec-style storage options:
// region, endpoint_url, key, secret, token, anon, path_style.
func S3ConfigFromOptions(opts map[string]string) S3Config {
	cfg := DefaultS3Config()
	if v := opts["region"]; v != "" {
		cfg.Region = v
	}
	cfg.Endpoint = opts["endpoint_url"]
	cfg.AccessKeyID = opts["key"]
	cfg.SecretAccessKey = opts["secret"]
	cfg.SessionToken = opts["token"]
	cfg.Anonymous = optionBool(opts["anon"])
	cfg.UsePathStyle = optionBool(opts["path_style"])
	return cfg
}

// NewS3Storage creates a new S3 storage client.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	switch {
	case cfg.Anonymous:
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "":
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeBackendInit, "failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return NewS3StorageWithClient(client, bucket, cfg), nil
}

// NewS3StorageWithClient creates a new S3 storage with a pre-configured client.
func NewS3StorageWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		config: cfg,
	}
}

// Open opens an S3 object for ranged reads.
func (s *S3Storage) Open(ctx context.Context, objectPath string) (Object, error) {
	info, err := s.Stat(ctx, objectPath)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
		})
		if err != nil {
			if isS3NotFound(err) {
				return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, s.bucket, objectPath)
			}
			return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed,
				fmt.Sprintf("get s3://%s/%s", s.bucket, objectPath), err)
		}
		return out.Body, nil
	}
	return newRangeObject(ctx, info.Size, fetch), nil
}

// Stat returns the size of an S3 object.
func (s *S3Storage) Stat(ctx context.Context, objectPath string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ObjectInfo{}, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, s.bucket, objectPath)
		}
		return ObjectInfo{}, stacerrors.NewConnectionError(stacerrors.CodeReadFailed,
			fmt.Sprintf("head s3://%s/%s", s.bucket, objectPath), err)
	}
	return ObjectInfo{Path: objectPath, Size: aws.ToInt64(out.ContentLength)}, nil
}

// Exists checks if an object exists in S3.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := s.Stat(ctx, objectPath)
	if err != nil {
		if stacerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects returns all objects under the given prefix.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, stacerrors.NewConnectionError(stacerrors.CodeListFailed,
				fmt.Sprintf("list s3://%s/%s", s.bucket, prefix), err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{Path: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

// Put uploads data to S3 in a single request.
func (s *S3Storage) Put(ctx context.Context, objectPath string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectPath),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed,
			fmt.Sprintf("put s3://%s/%s", s.bucket, objectPath), err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
