// Package schema extracts table:columns descriptors from Parquet datasets.
package schema

import (
	"regexp"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	pqschema "github.com/apache/arrow/go/v14/parquet/schema"

	"github.com/stactable/stac-table/internal/dataset"
	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/pkg/types"
)

// DaskIndexColumn is the column dask writes for an unnamed index.
const DaskIndexColumn = "__null_dask_index__"

// parquetMetadataPrefix marks field metadata the Parquet reader adds itself.
const parquetMetadataPrefix = "PARQUET:"

var pandasIndexColumn = regexp.MustCompile(`^__index_level_\d+__$`)

// IsIndexColumn reports whether name is a dataframe index artifact rather
// than a data column.
func IsIndexColumn(name string) bool {
	return name == DaskIndexColumn || pandasIndexColumn.MatchString(name)
}

// Source is the part of a dataset the extractor reads.
type Source interface {
	Schema() *pqschema.Schema
	ArrowSchema() *arrow.Schema
}

// Columns returns one descriptor per top-level field of the dataset's
// first fragment, in schema order. The type is the lowercased Parquet
// physical type of the field's first leaf column.
func Columns(ds Source) ([]types.Column, error) {
	sc := ds.Schema()
	if sc == nil {
		return nil, stacerrors.NewInternalError("dataset has no schema", nil)
	}
	root := sc.Root()

	columns := make([]types.Column, 0, root.NumFields())
	for i := 0; i < root.NumFields(); i++ {
		name := root.Field(i).Name()
		if IsIndexColumn(name) {
			continue
		}

		col := types.Column{Name: name}
		if leaves := dataset.LeafColumns(sc, name); len(leaves) > 0 {
			col.Type = strings.ToLower(sc.Column(leaves[0]).PhysicalType().String())
		}
		col.Metadata = fieldMetadata(ds.ArrowSchema(), name)
		columns = append(columns, col)
	}
	return columns, nil
}

// fieldMetadata returns the user metadata of the named Arrow field, or nil.
func fieldMetadata(sc *arrow.Schema, name string) map[string]string {
	if sc == nil {
		return nil
	}
	idx := sc.FieldIndices(name)
	if len(idx) == 0 {
		return nil
	}
	md := sc.Field(idx[0]).Metadata
	if md.Len() == 0 {
		return nil
	}

	out := make(map[string]string, md.Len())
	keys, values := md.Keys(), md.Values()
	for i, k := range keys {
		if strings.HasPrefix(k, parquetMetadataPrefix) {
			continue
		}
		out[k] = values[i]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var _ Source = (*dataset.Dataset)(nil)
