package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Box is a 2D axis-aligned bounding box. The zero value is not empty;
// use EmptyBox to start an accumulation.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyBox returns a box that contains nothing and grows on Extend.
func EmptyBox() Box {
	return Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// BoxFromSlice reads a GeoParquet or STAC bbox: [minx, miny, maxx, maxy]
// or [minx, miny, minz, maxx, maxy, maxz].
func BoxFromSlice(v []float64) (Box, bool) {
	switch len(v) {
	case 4:
		return Box{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, true
	case 6:
		return Box{MinX: v[0], MinY: v[1], MaxX: v[3], MaxY: v[4]}, true
	}
	return Box{}, false
}

// BoxOf returns the 2D bounds of g; empty geometries give an empty box.
func BoxOf(g geom.T) Box {
	b := EmptyBox()
	if g == nil {
		return b
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for _, child := range gc.Geoms() {
			b = b.Union(BoxOf(child))
		}
		return b
	}
	fc, stride := g.FlatCoords(), g.Stride()
	for i := 0; i+1 < len(fc) && stride >= 2; i += stride {
		b = b.ExtendPoint(fc[i], fc[i+1])
	}
	return b
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// ExtendPoint grows the box to contain (x, y). NaN ordinates are ignored.
func (b Box) ExtendPoint(x, y float64) Box {
	if math.IsNaN(x) || math.IsNaN(y) {
		return b
	}
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
	return b
}

// Union returns the smallest box containing b and o.
func (b Box) Union(o Box) Box {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return Box{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Slice returns [minx, miny, maxx, maxy].
func (b Box) Slice() []float64 {
	return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// Polygon returns the box outline as a closed counter-clockwise ring.
func (b Box) Polygon() *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		b.MaxX, b.MinY,
		b.MaxX, b.MaxY,
		b.MinX, b.MaxY,
		b.MinX, b.MinY,
		b.MaxX, b.MinY,
	}, []int{10})
}
