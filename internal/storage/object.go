package storage

import (
	"context"
	"io"
)

// rangeFetcher opens a reader over length bytes of an object starting at offset.
type rangeFetcher func(ctx context.Context, offset, length int64) (io.ReadCloser, error)

// rangeReaderAt implements io.ReaderAt with one ranged request per call.
type rangeReaderAt struct {
	ctx   context.Context
	size  int64
	fetch rangeFetcher
}

func (r *rangeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= r.size {
		return 0, io.EOF
	}

	n := int64(len(p))
	if off+n > r.size {
		n = r.size - off
	}

	body, err := r.fetch(r.ctx, off, n)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	read, err := io.ReadFull(body, p[:n])
	if err != nil {
		return read, err
	}
	if n < int64(len(p)) {
		return read, io.EOF
	}
	return read, nil
}

// rangeObject is an Object backed by ranged reads against remote storage.
type rangeObject struct {
	*io.SectionReader
}

func newRangeObject(ctx context.Context, size int64, fetch rangeFetcher) *rangeObject {
	ra := &rangeReaderAt{ctx: ctx, size: size, fetch: fetch}
	return &rangeObject{SectionReader: io.NewSectionReader(ra, 0, size)}
}

// Close is a no-op; every ranged read closes its own response body.
func (o *rangeObject) Close() error {
	return nil
}
