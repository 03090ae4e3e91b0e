package stac

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/twpayne/go-geom"

	"github.com/stactable/stac-table/internal/spatial"
	"github.com/stactable/stac-table/internal/testutil"
	"github.com/stactable/stac-table/pkg/types"
)

func TestProperty_Generate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)
	gen0 := newTestGenerator(t)
	run := 0

	properties.Property("one column descriptor per non-index field, in schema order", prop.ForAll(
		func(n int, withIndex bool) bool {
			run++
			tbl := testutil.NewTable()
			var want []string
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("c%d", i)
				tbl.Float64(name, float64(i))
				want = append(want, name)
				if withIndex && i == 0 {
					tbl.Int64("__null_dask_index__", 0)
				}
			}
			path := filepath.Join(t.TempDir(), fmt.Sprintf("cols-%d.parquet", run))
			tbl.Write(t, path)

			item, err := gen0.Generate(context.Background(), path, template(), DefaultOptions())
			if err != nil {
				return false
			}
			got := types.ColumnNames(item.Columns())
			return fmt.Sprint(got) == fmt.Sprint(want)
		},
		gen.IntRange(1, 8), gen.Bool(),
	))

	properties.Property("inferred bbox and backfilled geometry agree, template untouched, output stable", prop.ForAll(
		func(xs, ys []float64) bool {
			run++
			n := len(xs)
			if len(ys) < n {
				n = len(ys)
			}
			if n == 0 {
				return true
			}
			geoms := make([]geom.T, n)
			for i := 0; i < n; i++ {
				geoms[i] = geom.NewPointFlat(geom.XY, []float64{xs[i], ys[i]})
			}
			path := filepath.Join(t.TempDir(), fmt.Sprintf("geo-%d.parquet", run))
			testutil.NewTable().
				Geometry(t, "geometry", geoms...).
				Metadata(spatial.GeoMetadataKey, testutil.GeoMetadata(t, "geometry", nil, nil)).
				Write(t, path)

			opts := DefaultOptions()
			opts.InferBBox = true
			tmpl := template()
			before := encode(t, tmpl)

			a, err := gen0.Generate(context.Background(), path, tmpl, opts)
			if err != nil {
				return false
			}
			b, err := gen0.Generate(context.Background(), path, tmpl, opts)
			if err != nil {
				return false
			}
			g, err := a.DecodeGeometry()
			if err != nil || g == nil {
				return false
			}
			return fmt.Sprint(spatial.BoxOf(g).Slice()) == fmt.Sprint(a.BBox) &&
				encode(t, a) == encode(t, b) &&
				encode(t, tmpl) == before
		},
		gen.SliceOf(gen.Float64Range(-180, 180)), gen.SliceOf(gen.Float64Range(-90, 90)),
	))

	properties.TestingRun(t)
}
