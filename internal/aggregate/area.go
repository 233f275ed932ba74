package aggregate

import (
	"math"

	"github.com/twpayne/go-geom"
)

const earthRadiusKm = 6371.0088

// kmPerDegree is the length of one degree of latitude.
var kmPerDegree = earthRadiusKm * math.Pi / 180

// AreaKm2 returns the area in km² of a lon/lat polygon or multipolygon. The
// coordinates are projected equirectangularly around the geometry's middle
// latitude before taking the planar area, which is accurate to well under a
// percent at district scale. Other geometry types have zero area.
func AreaKm2(g geom.T) float64 {
	if g == nil {
		return 0
	}
	b := g.Bounds()
	if b.IsEmpty() {
		return 0
	}

	lat0 := (b.Min(1) + b.Max(1)) / 2 * math.Pi / 180
	kx := kmPerDegree * math.Cos(lat0)

	flat := g.FlatCoords()
	stride := g.Stride()
	proj := make([]float64, len(flat))
	copy(proj, flat)
	for i := 0; i+1 < len(proj); i += stride {
		proj[i] *= kx
		proj[i+1] *= kmPerDegree
	}

	switch t := g.(type) {
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), proj, t.Ends()).Area()
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), proj, t.Endss()).Area()
	default:
		return 0
	}
}
