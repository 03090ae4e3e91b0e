// Package dataset opens partitioned Parquet datasets stored on any
// supported storage backend.
//
// A dataset is either a single Parquet object or every Parquet fragment
// under a prefix. The schema and file metadata come from the first
// fragment; row counts and column reads cover every fragment.
package dataset

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/metadata"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/apache/arrow/go/v14/parquet/schema"
	"github.com/cockroachdb/errors"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/storage"
)

// defaultBatchSize bounds the rows decoded per record batch.
const defaultBatchSize = 64 * 1024

// Fragment is one Parquet file of a dataset.
type Fragment struct {
	// Path is the object path within the dataset's storage.
	Path string
	// Size is the object size in bytes.
	Size int64
}

// Dataset is an opened Parquet dataset.
type Dataset struct {
	uri       string
	root      string
	store     storage.ObjectStorage
	fragments []Fragment
	logger    *slog.Logger
	mem       memory.Allocator

	// footer of the first fragment
	meta        *metadata.FileMetaData
	arrowSchema *arrow.Schema
}

// Option configures Open.
type Option func(*Dataset)

// WithLogger sets the logger used for per-fragment debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dataset) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithStorage bypasses backend resolution and reads from store.
// The URI is then only parsed for its object path.
func WithStorage(store storage.ObjectStorage) Option {
	return func(d *Dataset) {
		d.store = store
	}
}

// Open opens the dataset at uri. storageOptions configure the backend
// resolved from the URI scheme (credentials, endpoints, account names).
func Open(ctx context.Context, uri string, storageOptions map[string]string, opts ...Option) (*Dataset, error) {
	d := &Dataset{
		uri:    uri,
		logger: slog.Default(),
		mem:    memory.NewGoAllocator(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.store == nil {
		store, root, err := storage.Resolve(ctx, uri, storageOptions)
		if err != nil {
			return nil, err
		}
		d.store = store
		d.root = root
	} else {
		loc, err := storage.ParseURI(uri)
		if err != nil {
			return nil, err
		}
		d.root = loc.Path
	}

	if err := d.discover(ctx); err != nil {
		return nil, err
	}

	meta, err := d.FragmentMetadata(ctx, 0)
	if err != nil {
		return nil, err
	}
	arrowSchema, err := pqarrow.FromParquet(meta.Schema, &pqarrow.ArrowReadProperties{}, meta.KeyValueMetadata())
	if err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidParquet,
			"convert parquet schema of "+d.fragments[0].Path, err)
	}
	d.meta = meta
	d.arrowSchema = arrowSchema

	d.logger.Debug("opened dataset",
		slog.String("uri", uri),
		slog.Int("fragments", len(d.fragments)),
		slog.Int("columns", meta.Schema.NumColumns()))
	return d, nil
}

// discover lists the fragments of the dataset. A root naming an object is
// the only fragment; otherwise every Parquet data file below it is one.
func (d *Dataset) discover(ctx context.Context) error {
	info, err := d.store.Stat(ctx, d.root)
	if err == nil {
		d.fragments = []Fragment{{Path: info.Path, Size: info.Size}}
		return nil
	}
	if !stacerrors.IsNotFound(err) {
		return err
	}

	objects, err := d.store.ListObjects(ctx, d.root)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if IsDataFile(d.root, obj.Path) {
			d.fragments = append(d.fragments, Fragment{Path: obj.Path, Size: obj.Size})
		}
	}
	if len(d.fragments) == 0 {
		return stacerrors.NewNotFound(stacerrors.CodeNoFragments, "no parquet fragments found at "+d.uri)
	}
	return nil
}

// IsDataFile reports whether objectPath below root is a Parquet data file.
// Hidden and underscore-prefixed files or directories (_metadata,
// _common_metadata, _SUCCESS, .crc files) are skipped, as are files with
// an extension other than .parquet.
func IsDataFile(root, objectPath string) bool {
	rel := strings.TrimPrefix(objectPath, strings.TrimSuffix(root, "/"))
	rel = strings.TrimPrefix(rel, "/")
	for _, segment := range strings.Split(rel, "/") {
		if strings.HasPrefix(segment, "_") || strings.HasPrefix(segment, ".") {
			return false
		}
	}
	base := path.Base(objectPath)
	return strings.HasSuffix(base, ".parquet") || !strings.Contains(base, ".")
}

// URI returns the dataset root URI as given to Open.
func (d *Dataset) URI() string { return d.uri }

// Fragments returns the dataset fragments sorted by path.
func (d *Dataset) Fragments() []Fragment {
	out := make([]Fragment, len(d.fragments))
	copy(out, d.fragments)
	return out
}

// Schema returns the Parquet schema of the first fragment.
func (d *Dataset) Schema() *schema.Schema { return d.meta.Schema }

// ArrowSchema returns the Arrow schema of the first fragment, including
// field metadata restored from the stored Arrow schema.
func (d *Dataset) ArrowSchema() *arrow.Schema { return d.arrowSchema }

// Metadata returns the key/value file metadata of the first fragment.
func (d *Dataset) Metadata() metadata.KeyValueMetadata { return d.meta.KeyValueMetadata() }

// MetadataValue looks up a key in the first fragment's file metadata.
func (d *Dataset) MetadataValue(key string) (string, bool) {
	v := d.meta.KeyValueMetadata().FindValue(key)
	if v == nil {
		return "", false
	}
	return *v, true
}

// FragmentMetadata reads the footer of fragment i.
func (d *Dataset) FragmentMetadata(ctx context.Context, i int) (*metadata.FileMetaData, error) {
	if i == 0 && d.meta != nil {
		return d.meta, nil
	}
	rdr, err := d.openFragment(ctx, i)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	return rdr.MetaData(), nil
}

// CountRows sums the row counts recorded in every fragment footer.
func (d *Dataset) CountRows(ctx context.Context) (int64, error) {
	var total int64
	for i := range d.fragments {
		meta, err := d.FragmentMetadata(ctx, i)
		if err != nil {
			return 0, err
		}
		total += meta.NumRows
	}
	return total, nil
}

// ChunkFunc receives one decoded chunk of a column and the index of the
// fragment it came from. The chunk is only valid during the call.
type ChunkFunc func(fragment int, chunk arrow.Array) error

// ReadColumn streams the named top-level column of every fragment, in
// fragment order, to fn.
func (d *Dataset) ReadColumn(ctx context.Context, name string, fn ChunkFunc) error {
	for i := range d.fragments {
		if err := d.readFragmentColumn(ctx, i, name, fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadFragmentColumn streams the named column of a single fragment.
func (d *Dataset) ReadFragmentColumn(ctx context.Context, fragment int, name string, fn ChunkFunc) error {
	return d.readFragmentColumn(ctx, fragment, name, fn)
}

func (d *Dataset) readFragmentColumn(ctx context.Context, i int, name string, fn ChunkFunc) error {
	rdr, err := d.openFragment(ctx, i)
	if err != nil {
		return err
	}
	defer rdr.Close()

	leaves := LeafColumns(rdr.MetaData().Schema, name)
	if len(leaves) == 0 {
		return stacerrors.NewNotFound(stacerrors.CodeColumnNotFound,
			"column "+name+" not found in "+d.fragments[i].Path)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: defaultBatchSize}, d.mem)
	if err != nil {
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidParquet,
			"read "+d.fragments[i].Path, err)
	}
	if rdr.NumRowGroups() == 0 {
		return nil
	}

	rr, err := fr.GetRecordReader(ctx, leaves, nil)
	if err != nil {
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidParquet,
			"read column "+name+" of "+d.fragments[i].Path, err)
	}
	defer rr.Release()

	d.logger.Debug("reading column",
		slog.String("column", name),
		slog.String("fragment", d.fragments[i].Path),
		slog.Int64("rows", rdr.NumRows()))

	for rr.Next() {
		rec := rr.Record()
		if err := fn(i, rec.Column(0)); err != nil {
			return err
		}
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if stacerrors.GetCategory(err) != "" {
			return err
		}
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidParquet,
			"decode column "+name+" of "+d.fragments[i].Path, err)
	}
	return nil
}

// LeafColumns returns the indices of every leaf column below the top-level
// field called name.
func LeafColumns(sc *schema.Schema, name string) []int {
	var leaves []int
	for i := 0; i < sc.NumColumns(); i++ {
		if sc.ColumnRoot(i).Name() == name {
			leaves = append(leaves, i)
		}
	}
	return leaves
}

func (d *Dataset) openFragment(ctx context.Context, i int) (*file.Reader, error) {
	if i < 0 || i >= len(d.fragments) {
		return nil, stacerrors.NewInternalError("fragment index out of range", nil)
	}
	frag := d.fragments[i]

	obj, err := d.store.Open(ctx, frag.Path)
	if err != nil {
		return nil, err
	}
	rdr, err := file.NewParquetReader(obj)
	if err != nil {
		obj.Close()
		if stacerrors.GetCategory(err) != "" {
			return nil, err
		}
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidParquet,
			"invalid parquet file "+frag.Path, err)
	}
	return rdr, nil
}

// Close releases the dataset. Fragments are opened per call, so Close only
// releases backend clients that hold resources.
func (d *Dataset) Close() error {
	if c, ok := d.store.(interface{ Close() error }); ok {
		return errors.Wrap(c.Close(), "close storage")
	}
	return nil
}
