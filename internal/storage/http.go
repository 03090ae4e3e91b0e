package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// HTTPStorage reads single objects over HTTP(S) using range requests.
// Object paths are absolute URLs. HTTP storage cannot list or write.
type HTTPStorage struct {
	client  *http.Client
	headers http.Header
}

// NewHTTPStorage creates an HTTP reader. Storage options named
// "header.<Name>" are sent as request headers.
func NewHTTPStorage(client *http.Client, opts map[string]string) *HTTPStorage {
	if client == nil {
		client = http.DefaultClient
	}
	headers := http.Header{}
	for k, v := range opts {
		if name, ok := strings.CutPrefix(k, "header."); ok && name != "" {
			headers.Set(name, v)
		}
	}
	return &HTTPStorage{client: client, headers: headers}
}

func (h *HTTPStorage) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "build request for "+url, err)
	}
	for k, vs := range h.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Open opens a remote object for ranged reads.
func (h *HTTPStorage) Open(ctx context.Context, url string) (Object, error) {
	info, err := h.Stat(ctx, url)
	if err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
		return h.fetchRange(ctx, url, offset, length)
	}
	return newRangeObject(ctx, info.Size, fetch), nil
}

func (h *HTTPStorage) fetchRange(ctx context.Context, url string, offset, length int64) (io.ReadCloser, error) {
	req, err := h.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "get "+url, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		// Server ignored the range header; skip to the requested window.
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			resp.Body.Close()
			return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "get "+url, err)
		}
		return struct {
			io.Reader
			io.Closer
		}{io.LimitReader(resp.Body, length), resp.Body}, nil
	default:
		resp.Body.Close()
		return nil, h.statusError(url, resp.StatusCode)
	}
}

// Stat issues a HEAD request and reads the content length.
func (h *HTTPStorage) Stat(ctx context.Context, url string) (ObjectInfo, error) {
	req, err := h.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return ObjectInfo{}, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return ObjectInfo{}, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "head "+url, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ObjectInfo{}, h.statusError(url, resp.StatusCode)
	}
	if resp.ContentLength >= 0 {
		return ObjectInfo{Path: url, Size: resp.ContentLength}, nil
	}
	size, err := h.rangeSize(ctx, url)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Path: url, Size: size}, nil
}

// rangeSize requests the first byte and parses the total from Content-Range.
func (h *HTTPStorage) rangeSize(ctx context.Context, url string) (int64, error) {
	req, err := h.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "get "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, h.statusError(url, resp.StatusCode)
	}
	cr := resp.Header.Get("Content-Range")
	_, total, ok := strings.Cut(cr, "/")
	if !ok || total == "*" {
		return 0, stacerrors.NewConnectionError(stacerrors.CodeReadFailed,
			fmt.Sprintf("unknown size for %s (Content-Range %q)", url, cr), nil)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "parse Content-Range of "+url, err)
	}
	return size, nil
}

// Get reads a whole remote document.
func (h *HTTPStorage) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := h.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "get "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, h.statusError(url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "read "+url, err)
	}
	return data, nil
}

// Exists checks if the URL answers a HEAD request with 200.
func (h *HTTPStorage) Exists(ctx context.Context, url string) (bool, error) {
	_, err := h.Stat(ctx, url)
	if err != nil {
		if stacerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListObjects always returns an empty listing; plain HTTP has no listing.
func (h *HTTPStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return nil, nil
}

// Put is not supported over plain HTTP.
func (h *HTTPStorage) Put(ctx context.Context, url string, data []byte) error {
	return stacerrors.NewConnectionError(stacerrors.CodeWriteFailed, "http storage is read-only: "+url, nil)
}

func (h *HTTPStorage) statusError(url string, status int) error {
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, url)
	}
	return stacerrors.NewConnectionError(stacerrors.CodeReadFailed,
		fmt.Sprintf("%s returned %d %s", url, status, http.StatusText(status)), nil)
}
