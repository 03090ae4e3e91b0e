package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

func secondsColumn(secs []int64) chunks {
	vals := make([]*time.Time, len(secs))
	for i, s := range secs {
		t := time.Unix(s, 0).UTC()
		vals[i] = &t
	}
	return chunks{timestamps(arrow.Second, vals...)}
}

func TestProperty_TemporalStrategies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// 2001-09-09 .. 2033-05-18
	seconds := gen.Int64Range(1000000000, 2000000000)

	properties.Property("unique over repeats of one value returns that value", prop.ForAll(
		func(s int64, n int) bool {
			secs := make([]int64, n)
			for i := range secs {
				secs[i] = s
			}
			ext, err := Summarize(context.Background(), secondsColumn(secs), "t", Unique)
			return err == nil && ext.Datetime.Equal(time.Unix(s, 0))
		},
		seconds, gen.IntRange(1, 20),
	))

	properties.Property("unique over two distinct values fails", prop.ForAll(
		func(a, b int64) bool {
			if a == b {
				b++
			}
			_, err := Summarize(context.Background(), secondsColumn([]int64{a, b, a}), "t", Unique)
			return stacerrors.IsInvalidArgument(err) && stacerrors.GetCode(err) == stacerrors.CodeAmbiguousValue
		},
		seconds, seconds,
	))

	properties.Property("range brackets every value and midpoint lies halfway", prop.ForAll(
		func(secs []int64) bool {
			if len(secs) == 0 {
				return true
			}
			col := secondsColumn(secs)
			rng, err := Summarize(context.Background(), col, "t", Range)
			if err != nil {
				return false
			}
			for _, s := range secs {
				v := time.Unix(s, 0)
				if v.Before(*rng.Start) || v.After(*rng.End) {
					return false
				}
			}
			mid, err := Summarize(context.Background(), col, "t", Midpoint)
			if err != nil {
				return false
			}
			return mid.Datetime.Sub(*rng.Start) == rng.End.Sub(*mid.Datetime) ||
				mid.Datetime.Sub(*rng.Start)+time.Nanosecond == rng.End.Sub(*mid.Datetime)
		},
		gen.SliceOf(seconds),
	))

	properties.TestingRun(t)
}
