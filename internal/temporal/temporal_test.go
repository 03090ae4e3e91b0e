package temporal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stactable/stac-table/internal/dataset"
	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/testutil"
)

// chunks is a ColumnReader over in-memory arrays.
type chunks []arrow.Array

func (c chunks) ReadColumn(_ context.Context, _ string, fn dataset.ChunkFunc) error {
	for _, a := range c {
		if err := fn(0, a); err != nil {
			return err
		}
	}
	return nil
}

func timestamps(unit arrow.TimeUnit, vals ...*time.Time) arrow.Array {
	b := array.NewTimestampBuilder(memory.NewGoAllocator(), &arrow.TimestampType{Unit: unit, TimeZone: "UTC"})
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
	return b.NewArray()
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": No, "no": No, "Midpoint": Midpoint, " unique ": Unique, "range": Range} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStrategy("median")
	assert.True(t, stacerrors.IsInvalidArgument(err))

	var s Strategy
	require.NoError(t, s.Set("range"))
	assert.Equal(t, Range, s)
	assert.Equal(t, "strategy", s.Type())
}

func TestSummarize_MissingColumn(t *testing.T) {
	for _, st := range []Strategy{Midpoint, Unique, Range} {
		_, err := Summarize(context.Background(), chunks{}, "", st)
		require.Error(t, err)
		assert.True(t, stacerrors.IsInvalidArgument(err))
		assert.Equal(t, "Must specify 'datetime_column' when 'infer_datetime != no'.", err.(*stacerrors.StacTableError).Message)
	}

	ext, err := Summarize(context.Background(), chunks{}, "", No)
	require.NoError(t, err)
	assert.Equal(t, Extent{}, ext)
}

func TestSummarize_Midpoint(t *testing.T) {
	col := chunks{
		timestamps(arrow.Microsecond, testutil.Time("2000-01-03T00:00:00Z"), nil),
		timestamps(arrow.Microsecond, testutil.Time("2000-01-01T00:00:00Z"), testutil.Time("2000-01-02T06:00:00Z")),
	}
	ext, err := Summarize(context.Background(), col, "when", Midpoint)
	require.NoError(t, err)
	require.NotNil(t, ext.Datetime)
	assert.Nil(t, ext.Start)
	assert.Equal(t, "2000-01-02T00:00:00Z", Format(*ext.Datetime))
}

func TestSummarize_Range(t *testing.T) {
	col := chunks{timestamps(arrow.Nanosecond,
		testutil.Time("2000-01-02T00:00:00Z"),
		testutil.Time("2000-01-03T00:00:00Z"),
		testutil.Time("2000-01-01T00:00:00Z"))}
	ext, err := Summarize(context.Background(), col, "when", Range)
	require.NoError(t, err)
	assert.Nil(t, ext.Datetime)
	assert.Equal(t, "2000-01-01T00:00:00Z", Format(*ext.Start))
	assert.Equal(t, "2000-01-03T00:00:00Z", Format(*ext.End))
}

func TestSummarize_Unique(t *testing.T) {
	v := testutil.Time("2021-06-01T12:30:00.5Z")
	ext, err := Summarize(context.Background(), chunks{timestamps(arrow.Millisecond, v, nil, v)}, "when", Unique)
	require.NoError(t, err)
	assert.Equal(t, "2021-06-01T12:30:00.5Z", Format(*ext.Datetime))

	col := chunks{timestamps(arrow.Second,
		testutil.Time("2000-01-01T00:00:00Z"),
		testutil.Time("2000-01-02T00:00:00Z"),
		testutil.Time("2000-01-01T00:00:00Z"),
		testutil.Time("2000-01-03T00:00:00Z"))}
	_, err = Summarize(context.Background(), col, "when", Unique)
	require.Error(t, err)
	assert.True(t, stacerrors.IsInvalidArgument(err))
	assert.Equal(t, stacerrors.CodeAmbiguousValue, stacerrors.GetCode(err))
	assert.Equal(t, "infer_datetime='unique', but 3 unique values found.", err.(*stacerrors.StacTableError).Message)
}

func TestSummarize_AllNull(t *testing.T) {
	_, err := Summarize(context.Background(), chunks{timestamps(arrow.Second, nil, nil)}, "when", Range)
	assert.True(t, stacerrors.IsNotFound(err))
	_, err = Summarize(context.Background(), chunks{timestamps(arrow.Second, nil)}, "when", Unique)
	assert.True(t, stacerrors.IsNotFound(err))
}

func TestSummarize_UnsupportedType(t *testing.T) {
	b := array.NewFloat64Builder(memory.NewGoAllocator())
	b.Append(1)
	_, err := Summarize(context.Background(), chunks{b.NewArray()}, "x", Midpoint)
	require.Error(t, err)
	assert.Equal(t, stacerrors.CodeUnsupportedType, stacerrors.GetCode(err))
}

func TestSummarize_Dataset(t *testing.T) {
	root := t.TempDir()
	testutil.NewTable().
		Timestamp("when", arrow.Microsecond, "America/New_York", testutil.Time("2000-01-01T05:00:00Z")).
		Date32("day", time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC)).
		Write(t, filepath.Join(root, "part.0.parquet"))
	testutil.NewTable().
		Timestamp("when", arrow.Microsecond, "America/New_York", testutil.Time("2000-01-03T05:00:00Z")).
		Date32("day", time.Date(2010, 5, 3, 0, 0, 0, 0, time.UTC)).
		Write(t, filepath.Join(root, "part.1.parquet"))

	ds, err := dataset.Open(context.Background(), root, nil)
	require.NoError(t, err)
	defer ds.Close()

	ext, err := Summarize(context.Background(), ds, "when", Range)
	require.NoError(t, err)
	assert.Equal(t, "2000-01-01T05:00:00Z", Format(*ext.Start))
	assert.Equal(t, "2000-01-03T05:00:00Z", Format(*ext.End))

	ext, err = Summarize(context.Background(), ds, "day", Midpoint)
	require.NoError(t, err)
	assert.Equal(t, "2010-05-02T00:00:00Z", Format(*ext.Datetime))

	_, err = Summarize(context.Background(), ds, "missing", Midpoint)
	assert.True(t, stacerrors.IsNotFound(err))
}

func TestMidpoint_SentinelDates(t *testing.T) {
	lo := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	mid := midpoint(lo, hi)
	assert.True(t, mid.After(lo) && mid.Before(hi), "midpoint %s outside [%s, %s]", mid, lo, hi)
	assert.Equal(t, lo.Unix()+(hi.Unix()-lo.Unix())/2, mid.Unix())
}

func TestMidpoint_SubSecond(t *testing.T) {
	lo := time.Date(2000, 1, 1, 0, 0, 0, 500_000_000, time.UTC)
	hi := time.Date(2000, 1, 1, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 750_000_000, time.UTC), midpoint(lo, hi))

	hi = time.Date(2000, 1, 1, 0, 0, 2, 0, time.UTC)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 1, 250_000_000, time.UTC), midpoint(lo, hi))
}

func TestSummarize_MicrosecondExtremes(t *testing.T) {
	root := t.TempDir()
	testutil.NewTable().
		Timestamp("when", arrow.Microsecond, "UTC",
			testutil.Time("0001-01-01T00:00:00Z"),
			testutil.Time("9999-12-31T00:00:00Z"),
			nil).
		Write(t, filepath.Join(root, "part.0.parquet"))

	ds, err := dataset.Open(context.Background(), root, nil)
	require.NoError(t, err)
	defer ds.Close()

	lo := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

	ext, err := Summarize(context.Background(), ds, "when", Range)
	require.NoError(t, err)
	assert.Equal(t, "0001-01-01T00:00:00Z", Format(*ext.Start))
	assert.Equal(t, "9999-12-31T00:00:00Z", Format(*ext.End))

	ext, err = Summarize(context.Background(), ds, "when", Midpoint)
	require.NoError(t, err)
	mid := *ext.Datetime
	assert.True(t, mid.After(lo) && mid.Before(hi), "midpoint %s outside the column range", mid)
	assert.Equal(t, "5000-07-02T00:00:00Z", Format(mid))
}

func TestMidpoint_LongSpan(t *testing.T) {
	lo := time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(3000, 1, 1, 0, 0, 0, 1, time.UTC)
	mid := midpoint(lo, hi)
	assert.True(t, mid.After(lo) && mid.Before(hi))
	assert.WithinDuration(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), mid, 48*time.Hour)
}
