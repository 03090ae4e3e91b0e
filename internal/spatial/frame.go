// Package spatial summarizes the geometry column of a GeoParquet dataset:
// its CRS, per-fragment bounds and geometry union, with reprojection of
// the results to EPSG:4326.
package spatial

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/stactable/stac-table/internal/dataset"
	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// Frame is the spatial view of a dataset over one geometry column.
type Frame struct {
	ds     *dataset.Dataset
	geo    *GeoMetadata
	column string
	crs    CRS
	logger *slog.Logger

	// nil until CalculateSpatialPartitions runs; one box per fragment
	partitions []Box
}

// Option configures Load.
type Option func(*Frame)

// WithColumn selects a geometry column other than the primary one.
func WithColumn(name string) Option {
	return func(f *Frame) {
		if name != "" {
			f.column = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frame) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Load reads the GeoParquet metadata of ds. Datasets without "geo"
// metadata are rejected with an InvalidArgument error.
func Load(ctx context.Context, ds *dataset.Dataset, opts ...Option) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, ok := ds.MetadataValue(GeoMetadataKey)
	if !ok {
		return nil, stacerrors.NewInvalidArgument(stacerrors.CodeMissingGeoMetadata,
			"dataset "+ds.URI()+" has no GeoParquet metadata")
	}
	md, err := ParseGeoMetadata(value)
	if err != nil {
		return nil, err
	}

	f := &Frame{ds: ds, geo: md, column: md.PrimaryColumn, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	crs, err := md.ColumnCRS(f.column)
	if err != nil {
		return nil, err
	}
	f.crs = crs
	return f, nil
}

// Column returns the geometry column the frame reads.
func (f *Frame) Column() string { return f.column }

// PrimaryColumn returns the dataset's primary geometry column.
func (f *Frame) PrimaryColumn() string { return f.geo.PrimaryColumn }

// CRS returns the CRS of the frame's geometry column.
func (f *Frame) CRS() CRS { return f.crs }

// Partitions returns the computed per-fragment boxes, or nil before
// CalculateSpatialPartitions.
func (f *Frame) Partitions() []Box {
	if f.partitions == nil {
		return nil
	}
	out := make([]Box, len(f.partitions))
	copy(out, f.partitions)
	return out
}

// CalculateSpatialPartitions computes one bounding box per fragment. The
// bbox recorded in a fragment's own "geo" metadata is used when present;
// fragments without one are scanned in full.
func (f *Frame) CalculateSpatialPartitions(ctx context.Context) error {
	if f.partitions != nil {
		return nil
	}

	fragments := f.ds.Fragments()
	partitions := make([]Box, len(fragments))
	var scan []int
	for i := range fragments {
		meta, err := f.ds.FragmentMetadata(ctx, i)
		if err != nil {
			return err
		}
		if b, ok := f.fragmentBBox(meta.KeyValueMetadata().FindValue(GeoMetadataKey)); ok {
			partitions[i] = b
			continue
		}
		scan = append(scan, i)
	}

	if len(scan) > 0 {
		f.logger.Warn("spatial partitions not recorded, scanning geometry column",
			slog.String("uri", f.ds.URI()),
			slog.String("column", f.column),
			slog.Int("fragments", len(scan)))
	}
	for _, i := range scan {
		b := EmptyBox()
		err := f.ds.ReadFragmentColumn(ctx, i, f.column, func(_ int, chunk arrow.Array) error {
			return eachGeometry(chunk, func(g geom.T) error {
				b = b.Union(BoxOf(g))
				return nil
			})
		})
		if err != nil {
			return err
		}
		partitions[i] = b
	}

	f.partitions = partitions
	return nil
}

func (f *Frame) fragmentBBox(value *string) (Box, bool) {
	if value == nil {
		return Box{}, false
	}
	var md GeoMetadata
	if err := json.Unmarshal([]byte(*value), &md); err != nil {
		return Box{}, false
	}
	return md.ColumnBBox(f.column)
}

// Bounds returns the union of the spatial partitions in the native CRS.
func (f *Frame) Bounds(ctx context.Context) (Box, error) {
	if err := f.CalculateSpatialPartitions(ctx); err != nil {
		return Box{}, err
	}
	b := EmptyBox()
	for _, p := range f.partitions {
		b = b.Union(p)
	}
	if b.IsEmpty() {
		return Box{}, stacerrors.NewNotFound(stacerrors.CodeEmptyColumn,
			"geometry column "+f.column+" has no non-empty geometries")
	}
	return b, nil
}

// UnaryUnion merges every geometry of the column, in the native CRS.
func (f *Frame) UnaryUnion(ctx context.Context) (geom.T, error) {
	u := newUnioner()
	err := f.ds.ReadColumn(ctx, f.column, func(_ int, chunk arrow.Array) error {
		return eachGeometry(chunk, u.Add)
	})
	if err != nil {
		return nil, err
	}
	return u.Result()
}

type binaryArray interface {
	Len() int
	IsNull(i int) bool
	Value(i int) []byte
}

// eachGeometry decodes every non-null WKB value of chunk.
func eachGeometry(chunk arrow.Array, fn func(geom.T) error) error {
	arr, ok := chunk.(binaryArray)
	if !ok {
		return stacerrors.NewInvalidArgumentf(stacerrors.CodeUnsupportedType,
			"geometry column has type %s, want WKB binary", chunk.DataType())
	}
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		g, err := wkb.Unmarshal(arr.Value(i))
		if err != nil {
			return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
				"decode WKB geometry", err)
		}
		if err := fn(g); err != nil {
			return err
		}
	}
	return nil
}
