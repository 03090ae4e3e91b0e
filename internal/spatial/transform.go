package spatial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// Transformer converts coordinates of one CRS to WGS84 longitude/latitude.
type Transformer interface {
	ToWGS84(x, y float64) (lon, lat float64)
}

// TransformFunc adapts a function to the Transformer interface.
type TransformFunc func(x, y float64) (float64, float64)

func (f TransformFunc) ToWGS84(x, y float64) (float64, float64) { return f(x, y) }

var identity = TransformFunc(func(x, y float64) (float64, float64) { return x, y })

// webMercatorHalfWorld is pi times the WGS84 semi-major axis, the largest
// EPSG:3857 easting.
const webMercatorHalfWorld = math.Pi * 6378137.0

// Ellipsoids used by the supported UTM families.
var (
	wgs84Ellipsoid = ellipsoid{a: 6378137.0, f: 1 / 298.257223563}
	grs80Ellipsoid = ellipsoid{a: 6378137.0, f: 1 / 298.257222101}
)

// NewTransformer returns the transformation from crs to EPSG:4326.
// Geographic WGS84 and NAD83 are passed through unchanged, Web Mercator
// is inverted with the s2 Mercator projection and UTM zones (WGS84
// 326xx/327xx, NAD83 269xx, ETRS89 258xx) with a Krüger series.
func NewTransformer(crs CRS) (Transformer, error) {
	switch code := crs.EPSG; {
	case code == EPSGWGS84 || code == EPSGNAD83:
		return identity, nil
	case code == EPSGWebMercator || code == 900913 || code == 3785:
		return newWebMercator(), nil
	case code >= 32601 && code <= 32660:
		return newUTM(wgs84Ellipsoid, code-32600, false), nil
	case code >= 32701 && code <= 32760:
		return newUTM(wgs84Ellipsoid, code-32700, true), nil
	case code >= 26901 && code <= 26923:
		return newUTM(grs80Ellipsoid, code-26900, false), nil
	case code >= 25828 && code <= 25838:
		return newUTM(grs80Ellipsoid, code-25800, false), nil
	}
	return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeUnsupportedCRS,
		"unsupported CRS %s: cannot reproject to EPSG:4326", crs)
}

func newWebMercator() Transformer {
	proj := s2.NewMercatorProjection(webMercatorHalfWorld)
	return TransformFunc(func(x, y float64) (float64, float64) {
		ll := proj.ToLatLng(r2.Point{X: x, Y: y})
		return ll.Lng.Degrees(), ll.Lat.Degrees()
	})
}

type ellipsoid struct {
	a, f float64
}

// utm inverts the transverse Mercator projection of one UTM zone using
// the Krüger series to third order in n.
type utm struct {
	lon0   float64 // central meridian, radians
	north0 float64 // false northing
	k0A    float64
	beta   [3]float64
	delta  [3]float64
}

func newUTM(e ellipsoid, zone int, south bool) *utm {
	n := e.f / (2 - e.f)
	n2, n3 := n*n, n*n*n
	A := e.a / (1 + n) * (1 + n2/4 + n2*n2/64)

	u := &utm{
		lon0: float64(zone*6-183) * math.Pi / 180,
		k0A:  0.9996 * A,
		beta: [3]float64{
			n/2 - 2*n2/3 + 37*n3/96,
			n2/48 + n3/15,
			17 * n3 / 480,
		},
		delta: [3]float64{
			2*n - 2*n2/3 - 2*n3,
			7*n2/3 - 8*n3/5,
			56 * n3 / 15,
		},
	}
	if south {
		u.north0 = 10000000
	}
	return u
}

func (u *utm) ToWGS84(easting, northing float64) (float64, float64) {
	xi := (northing - u.north0) / u.k0A
	eta := (easting - 500000) / u.k0A

	xiP, etaP := xi, eta
	for j := 1; j <= 3; j++ {
		b := u.beta[j-1]
		xiP -= b * math.Sin(2*float64(j)*xi) * math.Cosh(2*float64(j)*eta)
		etaP -= b * math.Cos(2*float64(j)*xi) * math.Sinh(2*float64(j)*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	lat := chi
	for j := 1; j <= 3; j++ {
		lat += u.delta[j-1] * math.Sin(2*float64(j)*chi)
	}
	lon := u.lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	return lon * 180 / math.Pi, lat * 180 / math.Pi
}

// Reproject returns a copy of g with every XY coordinate converted by t.
// Additional ordinates (Z, M) are kept.
func Reproject(g geom.T, t Transformer) (geom.T, error) {
	return rebuild(g, g.Layout(), t.ToWGS84)
}

// ReprojectBox converts a box by transforming its outline and taking the
// bounds of the result.
func ReprojectBox(b Box, t Transformer) (Box, error) {
	poly, err := Reproject(b.Polygon(), t)
	if err != nil {
		return Box{}, err
	}
	return BoxOf(poly), nil
}

// ToWGS84 reprojects g from crs to EPSG:4326.
func ToWGS84(g geom.T, crs CRS) (geom.T, error) {
	if crs.IsWGS84() {
		return g, nil
	}
	t, err := NewTransformer(crs)
	if err != nil {
		return nil, err
	}
	return Reproject(g, t)
}

// rebuild copies g into the given layout, passing each XY pair through fn.
// Ordinates missing from g's layout are written as zero.
func rebuild(g geom.T, layout geom.Layout, fn func(x, y float64) (float64, float64)) (geom.T, error) {
	inStride, outStride := g.Stride(), layout.Stride()
	scale := func(ends []int) []int {
		if ends == nil {
			return nil
		}
		out := make([]int, len(ends))
		for i, e := range ends {
			out[i] = e / inStride * outStride
		}
		return out
	}
	flat := func() []float64 {
		in := g.FlatCoords()
		n := len(in) / inStride
		out := make([]float64, n*outStride)
		for i := 0; i < n; i++ {
			src, dst := in[i*inStride:(i+1)*inStride], out[i*outStride:(i+1)*outStride]
			dst[0], dst[1] = fn(src[0], src[1])
			copy(dst[2:], src[2:])
		}
		return out
	}

	switch g := g.(type) {
	case *geom.Point:
		if g.Empty() {
			return geom.NewPointEmpty(layout), nil
		}
		return geom.NewPointFlat(layout, flat()), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(layout, flat()), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(layout, flat(), scale(g.Ends())), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(layout, flat(), geom.NewMultiPointFlatOptionWithEnds(scale(g.Ends()))), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(layout, flat(), scale(g.Ends())), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(g.Endss()))
		for i, ends := range g.Endss() {
			endss[i] = scale(ends)
		}
		return geom.NewMultiPolygonFlat(layout, flat(), endss), nil
	case *geom.GeometryCollection:
		out := geom.NewGeometryCollection()
		for _, child := range g.Geoms() {
			c, err := rebuild(child, layout, fn)
			if err != nil {
				return nil, err
			}
			if err := out.Push(c); err != nil {
				return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
					"rebuild geometry collection", err)
			}
		}
		return out, nil
	}
	return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidGeometry, "unsupported geometry type %T", g)
}

// flatten2D drops Z and M ordinates.
func flatten2D(g geom.T) (geom.T, error) {
	if g.Layout() == geom.XY {
		return g, nil
	}
	return rebuild(g, geom.XY, func(x, y float64) (float64, float64) { return x, y })
}
