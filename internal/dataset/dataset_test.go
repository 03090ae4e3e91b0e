package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/testutil"
)

func writePartitioned(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "data.parquet")
	testutil.NewTable().Float64("A", 1, 2).Int64("B", 10, 20).Write(t, filepath.Join(root, "part.0.parquet"))
	testutil.NewTable().Float64("A", 3).Int64("B", 30).Write(t, filepath.Join(root, "part.1.parquet"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_metadata"), []byte("not parquet"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_SUCCESS"), nil, 0644))
	return root
}

func TestOpen_Partitioned(t *testing.T) {
	root := writePartitioned(t)
	ctx := context.Background()

	ds, err := Open(ctx, root, nil)
	require.NoError(t, err)
	defer ds.Close()

	frags := ds.Fragments()
	require.Len(t, frags, 2)
	assert.Equal(t, "part.0.parquet", filepath.Base(frags[0].Path))
	assert.Equal(t, "part.1.parquet", filepath.Base(frags[1].Path))
	assert.Equal(t, root, ds.URI())

	assert.Equal(t, 2, ds.Schema().NumColumns())
	assert.Equal(t, "A", ds.ArrowSchema().Field(0).Name)

	rows, err := ds.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
}

func TestOpen_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.parquet")
	testutil.NewTable().Float64("A", 1, 2, 3).Metadata("origin", "test").Write(t, path)

	ds, err := Open(context.Background(), "file://"+path, nil)
	require.NoError(t, err)

	require.Len(t, ds.Fragments(), 1)
	v, ok := ds.MetadataValue("origin")
	assert.True(t, ok)
	assert.Equal(t, "test", v)

	_, ok = ds.MetadataValue("missing")
	assert.False(t, ok)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, filepath.Join(t.TempDir(), "missing"), nil)
	assert.True(t, stacerrors.IsNotFound(err), "missing dataset: %v", err)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "_common_metadata"), []byte("x"), 0644))
	_, err = Open(ctx, empty, nil)
	assert.True(t, stacerrors.IsNotFound(err), "only metadata files: %v", err)
	assert.Equal(t, stacerrors.CodeNoFragments, stacerrors.GetCode(err))

	bad := filepath.Join(t.TempDir(), "bad.parquet")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not a parquet file"), 0644))
	_, err = Open(ctx, bad, nil)
	assert.True(t, stacerrors.IsInvalidArgument(err), "corrupt footer: %v", err)

	_, err = Open(ctx, "ftp://host/data.parquet", nil)
	assert.True(t, stacerrors.IsConnection(err), "unknown scheme: %v", err)
}

func TestReadColumn(t *testing.T) {
	root := writePartitioned(t)
	ctx := context.Background()

	ds, err := Open(ctx, root, nil)
	require.NoError(t, err)

	var values []int64
	var fragments []int
	err = ds.ReadColumn(ctx, "B", func(fragment int, chunk arrow.Array) error {
		ints, ok := chunk.(*array.Int64)
		require.True(t, ok, "unexpected array type %T", chunk)
		values = append(values, ints.Int64Values()...)
		fragments = append(fragments, fragment)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, values)
	assert.Equal(t, []int{0, 1}, fragments)

	err = ds.ReadColumn(ctx, "C", func(int, arrow.Array) error { return nil })
	assert.True(t, stacerrors.IsNotFound(err))
}

func TestIsDataFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"root/part.0.parquet", true},
		{"root/part-00000-c000", true},
		{"root/year=2020/part.0.parquet", true},
		{"root/_metadata", false},
		{"root/_common_metadata", false},
		{"root/_SUCCESS", false},
		{"root/.part.0.parquet.crc", false},
		{"root/_delta_log/000.json", false},
		{"root/part.0.csv", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDataFile("root", tt.path), tt.path)
	}
}
