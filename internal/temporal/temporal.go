// Package temporal infers the temporal extent of a dataset from one of its
// timestamp columns.
package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"

	"github.com/stactable/stac-table/internal/dataset"
	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// Strategy selects how a column's values become a datetime.
type Strategy string

const (
	// No leaves the template's datetime untouched.
	No Strategy = "no"
	// Midpoint sets datetime halfway between the earliest and latest value.
	Midpoint Strategy = "midpoint"
	// Unique sets datetime to the column's only distinct value.
	Unique Strategy = "unique"
	// Range sets start_datetime and end_datetime to the extremes.
	Range Strategy = "range"
)

// ParseStrategy parses a strategy name. The empty string means No.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return No, nil
	case No, Midpoint, Unique, Range:
		return st, nil
	}
	return "", stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
		"unknown infer_datetime %q: want one of no, midpoint, unique, range", s)
}

func (s Strategy) String() string { return string(s) }

// Set implements pflag.Value.
func (s *Strategy) Set(v string) error {
	st, err := ParseStrategy(v)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Type implements pflag.Value.
func (s *Strategy) Type() string { return "strategy" }

// Extent is the result of a summary. Datetime is set by Midpoint and
// Unique; Start and End by Range.
type Extent struct {
	Datetime *time.Time
	Start    *time.Time
	End      *time.Time
}

// ColumnReader streams the chunks of a column.
type ColumnReader interface {
	ReadColumn(ctx context.Context, name string, fn dataset.ChunkFunc) error
}

// CheckOptions reports the precondition failure of a strategy without
// a column.
func CheckOptions(column string, strategy Strategy) error {
	if strategy != No && strategy != "" && column == "" {
		return stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption,
			"Must specify 'datetime_column' when 'infer_datetime != no'.")
	}
	return nil
}

// Summarize computes the extent of column according to strategy. Null
// values are ignored.
func Summarize(ctx context.Context, ds ColumnReader, column string, strategy Strategy) (Extent, error) {
	if err := CheckOptions(column, strategy); err != nil {
		return Extent{}, err
	}

	switch strategy {
	case No, "":
		return Extent{}, nil
	case Midpoint, Range:
		lo, hi, err := minMax(ctx, ds, column)
		if err != nil {
			return Extent{}, err
		}
		if strategy == Range {
			return Extent{Start: &lo, End: &hi}, nil
		}
		mid := midpoint(lo, hi)
		return Extent{Datetime: &mid}, nil
	case Unique:
		v, err := unique(ctx, ds, column)
		if err != nil {
			return Extent{}, err
		}
		return Extent{Datetime: &v}, nil
	}
	return Extent{}, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
		"unknown infer_datetime %q", string(strategy))
}

func minMax(ctx context.Context, ds ColumnReader, column string) (time.Time, time.Time, error) {
	var lo, hi time.Time
	found := false
	err := eachTime(ctx, ds, column, func(t time.Time) {
		if !found || t.Before(lo) {
			lo = t
		}
		if !found || t.After(hi) {
			hi = t
		}
		found = true
	})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !found {
		return time.Time{}, time.Time{}, emptyColumn(column)
	}
	return lo, hi, nil
}

// midpoint returns lo + (hi-lo)/2. The whole seconds are halved as
// seconds; time.Duration only carries the sub-second remainder, which
// stays under two seconds for any span.
func midpoint(lo, hi time.Time) time.Time {
	secs := hi.Unix() - lo.Unix()
	nanos := int64(hi.Nanosecond() - lo.Nanosecond())
	rest := time.Duration((secs%2)*int64(time.Second)+nanos) / 2
	return time.Unix(lo.Unix()+secs/2, int64(lo.Nanosecond())).Add(rest).UTC()
}

type instant struct {
	sec  int64
	nsec int
}

func unique(ctx context.Context, ds ColumnReader, column string) (time.Time, error) {
	seen := map[instant]time.Time{}
	var first time.Time
	err := eachTime(ctx, ds, column, func(t time.Time) {
		k := instant{t.Unix(), t.Nanosecond()}
		if _, ok := seen[k]; !ok {
			if len(seen) == 0 {
				first = t
			}
			seen[k] = t
		}
	})
	if err != nil {
		return time.Time{}, err
	}
	switch n := len(seen); n {
	case 0:
		return time.Time{}, emptyColumn(column)
	case 1:
		return first, nil
	default:
		return time.Time{}, stacerrors.NewInvalidArgument(stacerrors.CodeAmbiguousValue,
			fmt.Sprintf("infer_datetime='unique', but %d unique values found.", n))
	}
}

func emptyColumn(column string) error {
	return stacerrors.NewNotFound(stacerrors.CodeEmptyColumn, "column "+column+" has no non-null values")
}

// eachTime calls fn with every non-null value of column, in UTC.
// Timestamps of any unit (INT96 included, which the reader exposes as
// nanosecond timestamps) and dates are accepted.
func eachTime(ctx context.Context, ds ColumnReader, column string, fn func(time.Time)) error {
	return ds.ReadColumn(ctx, column, func(_ int, chunk arrow.Array) error {
		switch a := chunk.(type) {
		case *array.Timestamp:
			unit := a.DataType().(*arrow.TimestampType).Unit
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					fn(a.Value(i).ToTime(unit).UTC())
				}
			}
		case *array.Date32:
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					fn(a.Value(i).ToTime().UTC())
				}
			}
		case *array.Date64:
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					fn(a.Value(i).ToTime().UTC())
				}
			}
		default:
			return stacerrors.NewInvalidArgumentf(stacerrors.CodeUnsupportedType,
				"column %s has type %s, want a timestamp or date", column, chunk.DataType())
		}
		return nil
	})
}

// Format renders t as RFC 3339 in UTC with a Z designator; fractional
// seconds appear only when non-zero.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
