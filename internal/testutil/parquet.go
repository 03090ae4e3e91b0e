// Package testutil writes Parquet and GeoParquet fixtures for tests.
package testutil

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// Table accumulates columns of equal length and writes them as a Parquet file.
type Table struct {
	mem    memory.Allocator
	fields []arrow.Field
	cols   []arrow.Array
	meta   map[string]string
	keys   []string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{mem: memory.NewGoAllocator(), meta: map[string]string{}}
}

func (t *Table) add(field arrow.Field, arr arrow.Array) *Table {
	t.fields = append(t.fields, field)
	t.cols = append(t.cols, arr)
	return t
}

// Float64 adds a double column.
func (t *Table) Float64(name string, vals ...float64) *Table {
	b := array.NewFloat64Builder(t.mem)
	defer b.Release()
	b.AppendValues(vals, nil)
	return t.add(arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64}, b.NewArray())
}

// Int64 adds an int64 column.
func (t *Table) Int64(name string, vals ...int64) *Table {
	b := array.NewInt64Builder(t.mem)
	defer b.Release()
	b.AppendValues(vals, nil)
	return t.add(arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64}, b.NewArray())
}

// String adds a utf8 column.
func (t *Table) String(name string, vals ...string) *Table {
	b := array.NewStringBuilder(t.mem)
	defer b.Release()
	b.AppendValues(vals, nil)
	return t.add(arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}, b.NewArray())
}

// Timestamp adds a timestamp column; nil values are written as nulls.
func (t *Table) Timestamp(name string, unit arrow.TimeUnit, tz string, vals ...*time.Time) *Table {
	typ := &arrow.TimestampType{Unit: unit, TimeZone: tz}
	b := array.NewTimestampBuilder(t.mem, typ)
	defer b.Release()
	for _, v := range vals {
		if v == nil {
			b.AppendNull()
			continue
		}
		ts, err := arrow.TimestampFromTime(*v, unit)
		if err != nil {
			panic(err)
		}
		b.Append(ts)
	}
	return t.add(arrow.Field{Name: name, Type: typ, Nullable: true}, b.NewArray())
}

// Date32 adds a date column.
func (t *Table) Date32(name string, vals ...time.Time) *Table {
	b := array.NewDate32Builder(t.mem)
	defer b.Release()
	for _, v := range vals {
		b.Append(arrow.Date32FromTime(v))
	}
	return t.add(arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Date32, Nullable: true}, b.NewArray())
}

// Geometry adds a WKB-encoded geometry column; nil geometries are nulls.
func (t *Table) Geometry(tb testing.TB, name string, geoms ...geom.T) *Table {
	tb.Helper()
	b := array.NewBinaryBuilder(t.mem, arrow.BinaryTypes.Binary)
	defer b.Release()
	for _, g := range geoms {
		if g == nil {
			b.AppendNull()
			continue
		}
		b.Append(WKB(tb, g))
	}
	return t.add(arrow.Field{Name: name, Type: arrow.BinaryTypes.Binary, Nullable: true}, b.NewArray())
}

// FieldMetadata attaches key/value metadata to the named field.
func (t *Table) FieldMetadata(name string, kv map[string]string) *Table {
	keys := make([]string, 0, len(kv))
	values := make([]string, 0, len(kv))
	for k, v := range kv {
		keys = append(keys, k)
		values = append(values, v)
	}
	for i := range t.fields {
		if t.fields[i].Name == name {
			t.fields[i].Metadata = arrow.NewMetadata(keys, values)
		}
	}
	return t
}

// Metadata sets a file-level key/value metadata entry.
func (t *Table) Metadata(key, value string) *Table {
	if _, ok := t.meta[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.meta[key] = value
	return t
}

// Write writes the table to path, creating parent directories, with every
// row in a single row group.
func (t *Table) Write(tb testing.TB, path string) {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0755))

	values := make([]string, len(t.keys))
	for i, k := range t.keys {
		values[i] = t.meta[k]
	}
	md := arrow.NewMetadata(t.keys, values)
	sc := arrow.NewSchema(t.fields, &md)

	var nrows int64
	if len(t.cols) > 0 {
		nrows = int64(t.cols[0].Len())
	}
	rec := array.NewRecord(sc, t.cols, nrows)
	defer rec.Release()

	f, err := os.Create(path)
	require.NoError(tb, err)
	defer f.Close()

	w, err := pqarrow.NewFileWriter(sc, f,
		parquet.NewWriterProperties(),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	require.NoError(tb, err)
	require.NoError(tb, w.Write(rec))
	require.NoError(tb, w.Close())
}

// WKB encodes g as little-endian WKB.
func WKB(tb testing.TB, g geom.T) []byte {
	tb.Helper()
	data, err := wkb.Marshal(g, binary.LittleEndian)
	require.NoError(tb, err)
	return data
}

// GeoMetadata builds a GeoParquet "geo" metadata value for a single WKB
// geometry column. A nil crs omits the key (OGC:CRS84); a nil bbox omits
// the bbox.
func GeoMetadata(tb testing.TB, column string, crs json.RawMessage, bbox []float64) string {
	tb.Helper()
	col := map[string]interface{}{
		"encoding":       "WKB",
		"geometry_types": []string{},
	}
	if crs != nil {
		col["crs"] = crs
	}
	if bbox != nil {
		col["bbox"] = bbox
	}
	doc := map[string]interface{}{
		"version":        "1.0.0",
		"primary_column": column,
		"columns":        map[string]interface{}{column: col},
	}
	data, err := json.Marshal(doc)
	require.NoError(tb, err)
	return string(data)
}

// EPSGProjJSON returns a minimal PROJJSON document carrying an EPSG id.
func EPSGProjJSON(code int) json.RawMessage {
	data, _ := json.Marshal(map[string]interface{}{
		"$schema": "https://proj.org/schemas/v0.6/projjson.schema.json",
		"type":    "ProjectedCRS",
		"name":    "EPSG:" + strconv.Itoa(code),
		"id":      map[string]interface{}{"authority": "EPSG", "code": code},
	})
	return data
}

// Time parses an RFC 3339 timestamp or panics.
func Time(s string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return &t
}
