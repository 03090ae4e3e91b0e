package spatial

import (
	"math"

	sfgeom "github.com/peterstace/simplefeatures/geom"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// unioner computes the union of a stream of geometries. Points are
// de-duplicated as they arrive; lines and polygons are collected and
// dissolved by a planar overlay in Result.
type unioner struct {
	count int
	first geom.T

	points [][2]float64
	seen   map[[2]float64]struct{}
	lines  []*geom.LineString
	polys  []*geom.Polygon
}

func newUnioner() *unioner {
	return &unioner{seen: map[[2]float64]struct{}{}}
}

// Add merges g, flattened to 2D. Empty geometries are skipped.
func (u *unioner) Add(g geom.T) error {
	if g == nil || g.Empty() {
		return nil
	}
	g, err := flatten2D(g)
	if err != nil {
		return err
	}
	u.count++
	if u.count == 1 {
		u.first = g
	}
	return u.add(g)
}

func (u *unioner) add(g geom.T) error {
	switch g := g.(type) {
	case *geom.Point:
		if !g.Empty() {
			u.addPoint(g.X(), g.Y())
		}
	case *geom.MultiPoint:
		for i := 0; i < g.NumPoints(); i++ {
			if p := g.Point(i); !p.Empty() {
				u.addPoint(p.X(), p.Y())
			}
		}
	case *geom.LineString:
		u.lines = append(u.lines, g)
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			u.lines = append(u.lines, g.LineString(i))
		}
	case *geom.Polygon:
		u.polys = append(u.polys, g)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			u.polys = append(u.polys, g.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, child := range g.Geoms() {
			if child.Empty() {
				continue
			}
			if err := u.add(child); err != nil {
				return err
			}
		}
	default:
		return stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidGeometry, "unsupported geometry type %T", g)
	}
	return nil
}

func (u *unioner) addPoint(x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	key := [2]float64{x, y}
	if _, ok := u.seen[key]; ok {
		return
	}
	u.seen[key] = struct{}{}
	u.points = append(u.points, key)
}

// Result returns the union. A single input geometry is returned
// unchanged and a set of points becomes a de-duplicated MultiPoint (or a
// Point). Anything involving lines or polygons is dissolved, so
// overlapping and repeated polygons merge into one.
func (u *unioner) Result() (geom.T, error) {
	if u.count == 0 {
		return nil, stacerrors.NewNotFound(stacerrors.CodeEmptyColumn, "geometry column has no non-empty geometries")
	}
	if u.count == 1 {
		return u.first, nil
	}

	points := u.pointGeometry()
	if len(u.lines) == 0 && len(u.polys) == 0 {
		return points, nil
	}

	gc := geom.NewGeometryCollection()
	if points != nil {
		if err := gc.Push(points); err != nil {
			return nil, stacerrors.NewInternalError("collect points", err)
		}
	}
	for _, ls := range u.lines {
		if err := gc.Push(ls); err != nil {
			return nil, stacerrors.NewInternalError("collect line strings", err)
		}
	}
	for _, p := range u.polys {
		if err := gc.Push(p); err != nil {
			return nil, stacerrors.NewInternalError("collect polygons", err)
		}
	}
	return dissolve(gc)
}

func (u *unioner) pointGeometry() geom.T {
	switch len(u.points) {
	case 0:
		return nil
	case 1:
		return geom.NewPointFlat(geom.XY, u.points[0][:])
	}
	flat := make([]float64, 0, 2*len(u.points))
	for _, p := range u.points {
		flat = append(flat, p[0], p[1])
	}
	return geom.NewMultiPointFlat(geom.XY, flat)
}

// dissolve runs a unary union overlay over every member of gc.
func dissolve(gc *geom.GeometryCollection) (geom.T, error) {
	in, err := wkb.Marshal(gc, wkb.NDR)
	if err != nil {
		return nil, stacerrors.NewInternalError("encode geometries for union", err)
	}
	g, err := sfgeom.UnmarshalWKB(in)
	if err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
			"invalid geometry in union", err)
	}
	unioned, err := sfgeom.UnaryUnion(g)
	if err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
			"union geometries", err)
	}
	if unioned.IsEmpty() {
		return nil, stacerrors.NewNotFound(stacerrors.CodeEmptyColumn, "union of the geometry column is empty")
	}
	out, err := wkb.Unmarshal(unioned.AsBinary())
	if err != nil {
		return nil, stacerrors.NewInternalError("decode union result", err)
	}
	return out, nil
}
