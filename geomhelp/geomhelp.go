package geomhelp

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/muesli/reflow/truncate"
)

// https://en.wikipedia.org/wiki/Shoelace_formula
func Shoelace(pts [][2]float64) float64 {
	sum := 0.
	if len(pts) == 0 {
		return 0.
	}

	p0 := pts[len(pts)-1]
	for _, p1 := range pts {
		sum += p0[1]*p1[0] - p0[0]*p1[1]
		p0 = p1
	}
	return math.Abs(sum / 2)
}

// PolygonArea is the area of the outer ring minus the holes, in squared units of the
// coordinates.
func PolygonArea(p geom.Polygon) float64 {
	area := 0.
	for i, ring := range p {
		if i == 0 {
			area += Shoelace(ring)
		} else {
			area -= Shoelace(ring)
		}
	}
	return area
}

// WktMustEncode encodes the geometry, truncated to maxLen characters when maxLen > 0.
func WktMustEncode(g geom.Geometry, maxLen uint) string {
	if maxLen == 0 {
		return wkt.MustEncode(g)
	}
	return truncate.StringWithTail(wkt.MustEncode(g), maxLen, "...")
}

func WktMustEncodeSlice(geoms []geom.Polygon, maxLen uint) string {
	s := ""
	for i := range geoms {
		s += WktMustEncode(geoms[i], maxLen) + "\n"
	}
	return s
}
