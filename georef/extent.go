package georef

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pdok/pyramid/mathhelp"
)

const (
	// samplesPerEdge is the number of points per edge used when reprojecting an extent
	samplesPerEdge = 10
	// equivalenceEpsilon is the tolerance used when comparing extent coordinates
	equivalenceEpsilon = 1e-6
	longitudeEpsilon   = 1e-9
)

// Extent is an axis-aligned rectangle in a spatial reference.
// A geographic extent with XMin > XMax crosses the antimeridian.
// The zero Extent is invalid.
type Extent struct {
	srs    *SRS
	bounds geom.Extent
}

// NewExtent creates an extent. Longitudes of geographic extents narrower than the
// whole world are normalized to [-180, 180], so (170, 190) becomes the antimeridian
// crossing (170, -170).
func NewExtent(srs *SRS, xmin, ymin, xmax, ymax float64) Extent {
	if srs.IsGeographic() && xmax-xmin < 360 {
		xmin = normalizeLongitude(xmin)
		xmax = normalizeLongitude(xmax)
	}
	return Extent{srs: srs, bounds: geom.Extent{xmin, ymin, xmax, ymax}}
}

// NewExtentFromBounds creates an extent from a go-spatial extent.
func NewExtentFromBounds(srs *SRS, bounds geom.Extent) Extent {
	return NewExtent(srs, bounds.MinX(), bounds.MinY(), bounds.MaxX(), bounds.MaxY())
}

func normalizeLongitude(lon float64) float64 {
	for lon > 180+longitudeEpsilon {
		lon -= 360
	}
	for lon < -180-longitudeEpsilon {
		lon += 360
	}
	return lon
}

func (e Extent) SRS() *SRS {
	return e.srs
}

func (e Extent) XMin() float64 { return e.bounds[0] }
func (e Extent) YMin() float64 { return e.bounds[1] }
func (e Extent) XMax() float64 { return e.bounds[2] }
func (e Extent) YMax() float64 { return e.bounds[3] }

// Bounds returns the raw coordinates. For antimeridian crossing extents MinX > MaxX.
func (e Extent) Bounds() geom.Extent {
	return e.bounds
}

func (e Extent) Valid() bool {
	if e.srs == nil || !mathhelp.IsFinite(e.bounds[:]...) {
		return false
	}
	if e.YMax() < e.YMin() {
		return false
	}
	return e.XMin() <= e.XMax() || e.srs.IsGeographic()
}

func (e Extent) CrossesAntimeridian() bool {
	return e.srs.IsGeographic() && e.XMin() > e.XMax()
}

// SplitAcrossAntimeridian splits a crossing extent into its western part, ending at 180,
// and its eastern part, starting at -180.
func (e Extent) SplitAcrossAntimeridian() (west, east Extent, ok bool) {
	if !e.Valid() || !e.CrossesAntimeridian() {
		return Extent{}, Extent{}, false
	}
	west = Extent{srs: e.srs, bounds: geom.Extent{e.XMin(), e.YMin(), 180, e.YMax()}}
	east = Extent{srs: e.srs, bounds: geom.Extent{-180, e.YMin(), e.XMax(), e.YMax()}}
	return west, east, true
}

func (e Extent) Width() float64 {
	if e.CrossesAntimeridian() {
		return e.XMax() + 360 - e.XMin()
	}
	return e.XMax() - e.XMin()
}

func (e Extent) Height() float64 {
	return e.YMax() - e.YMin()
}

// Center returns the center coordinate, taking antimeridian crossing into account.
func (e Extent) Center() (x, y float64) {
	x = e.XMin() + e.Width()/2
	if e.CrossesAntimeridian() {
		x = normalizeLongitude(x)
	}
	return x, e.YMin() + e.Height()/2
}

func (e Extent) IsWholeEarth() bool {
	return e.Valid() && e.srs.IsGeographic() &&
		e.Width() >= 360-equivalenceEpsilon && e.Height() >= 180-equivalenceEpsilon
}

// Contains reports whether the coordinate lies in the extent, edges included.
func (e Extent) Contains(x, y float64) bool {
	if !e.Valid() || y < e.YMin() || y > e.YMax() {
		return false
	}
	if e.CrossesAntimeridian() {
		return x >= e.XMin() || x <= e.XMax()
	}
	return x >= e.XMin() && x <= e.XMax()
}

// Intersection returns the overlap of two extents in the same reference, or an invalid
// extent when they do not overlap.
func (e Extent) Intersection(other Extent) Extent {
	if !e.Valid() || !other.Valid() || !e.srs.IsHorizontallyEquivalentTo(other.srs) {
		return Extent{}
	}
	if e.CrossesAntimeridian() || other.CrossesAntimeridian() {
		return e.intersectionAcrossAntimeridian(other)
	}
	xmin := math.Max(e.XMin(), other.XMin())
	ymin := math.Max(e.YMin(), other.YMin())
	xmax := math.Min(e.XMax(), other.XMax())
	ymax := math.Min(e.YMax(), other.YMax())
	if xmin > xmax || ymin > ymax {
		return Extent{}
	}
	return Extent{srs: e.srs, bounds: geom.Extent{xmin, ymin, xmax, ymax}}
}

func (e Extent) intersectionAcrossAntimeridian(other Extent) Extent {
	var parts []Extent
	for _, a := range e.parts() {
		for _, b := range other.parts() {
			if i := a.Intersection(b); i.Valid() {
				parts = append(parts, i)
			}
		}
	}
	switch len(parts) {
	case 0:
		return Extent{}
	case 1:
		return parts[0]
	}
	result := parts[0]
	for _, p := range parts[1:] {
		result = result.union(p)
	}
	return result
}

// parts returns the non crossing pieces of the extent.
func (e Extent) parts() []Extent {
	if west, east, ok := e.SplitAcrossAntimeridian(); ok {
		return []Extent{west, east}
	}
	return []Extent{e}
}

// union joins two extents. Geographic parts touching the antimeridian from both
// sides are joined into a crossing extent.
func (e Extent) union(other Extent) Extent {
	ymin := math.Min(e.YMin(), other.YMin())
	ymax := math.Max(e.YMax(), other.YMax())
	if e.srs.IsGeographic() {
		west, east := e, other
		if west.XMin() < east.XMin() {
			west, east = east, west
		}
		if west.XMax() >= 180-longitudeEpsilon && east.XMin() <= -180+longitudeEpsilon && west.XMin() > east.XMax() {
			return NewExtent(e.srs, west.XMin(), ymin, east.XMax(), ymax)
		}
	}
	xmin := math.Min(e.XMin(), other.XMin())
	xmax := math.Max(e.XMax(), other.XMax())
	return Extent{srs: e.srs, bounds: geom.Extent{xmin, ymin, xmax, ymax}}
}

func (e Extent) Intersects(other Extent) bool {
	return e.Intersection(other).Valid()
}

// Equal reports whether both extents are in equivalent references and have the same
// coordinates within a small tolerance. Two invalid extents are equal.
func (e Extent) Equal(other Extent) bool {
	if !e.Valid() || !other.Valid() {
		return !e.Valid() && !other.Valid()
	}
	if !e.srs.IsHorizontallyEquivalentTo(other.srs) {
		return false
	}
	for i := range e.bounds {
		if !mathhelp.Equivalent(e.bounds[i], other.bounds[i], equivalenceEpsilon) {
			return false
		}
	}
	return true
}

// Transform reprojects the extent by sampling its edges and returns the minimum bounding
// rectangle of the samples. The result is invalid if any sample cannot be transformed.
func (e Extent) Transform(to *SRS) Extent {
	if !e.Valid() || to == nil {
		return Extent{}
	}
	if e.srs.IsHorizontallyEquivalentTo(to) {
		return Extent{srs: to, bounds: e.bounds}
	}
	if west, east, ok := e.SplitAcrossAntimeridian(); ok {
		w, ea := west.Transform(to), east.Transform(to)
		if !w.Valid() || !ea.Valid() {
			return Extent{}
		}
		return w.union(ea)
	}

	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	for _, p := range e.samples() {
		x, y, err := e.srs.TransformPoint(p[0], p[1], to)
		if err != nil {
			return Extent{}
		}
		xmin, ymin = math.Min(xmin, x), math.Min(ymin, y)
		xmax, ymax = math.Max(xmax, x), math.Max(ymax, y)
	}
	return Extent{srs: to, bounds: geom.Extent{xmin, ymin, xmax, ymax}}
}

func (e Extent) samples() [][2]float64 {
	points := make([][2]float64, 0, 4*samplesPerEdge+1)
	dx := e.Width() / samplesPerEdge
	dy := e.Height() / samplesPerEdge
	for i := 0; i < samplesPerEdge; i++ {
		fi := float64(i)
		points = append(points,
			[2]float64{e.XMin() + fi*dx, e.YMin()},
			[2]float64{e.XMax(), e.YMin() + fi*dy},
			[2]float64{e.XMax() - fi*dx, e.YMax()},
			[2]float64{e.XMin(), e.YMax() - fi*dy},
		)
	}
	cx, cy := e.Center()
	return append(points, [2]float64{cx, cy})
}

// BoundingRadius returns the radius of the circle around the center that contains the
// extent. Geographic extents are measured in meters on the sphere, projected extents
// in the units of their reference.
func (e Extent) BoundingRadius() float64 {
	if !e.Valid() {
		return 0
	}
	if !e.srs.IsGeographic() {
		return math.Hypot(e.Width()/2, e.Height()/2)
	}
	cx, cy := e.Center()
	center := orb.Point{cx, cy}
	w, s, east, n := e.XMin(), e.YMin(), e.XMax(), e.YMax()
	radius := 0.0
	for _, p := range []orb.Point{{w, s}, {east, s}, {east, n}, {w, n}, {cx, s}, {cx, n}, {w, cy}, {east, cy}} {
		radius = math.Max(radius, geo.DistanceHaversine(center, p))
	}
	return radius
}

// WidthMeters is the width of the extent in meters, measured at its center latitude for
// geographic extents.
func (e Extent) WidthMeters() float64 {
	if !e.Valid() {
		return 0
	}
	if !e.srs.IsGeographic() {
		return e.Width() * e.srs.metersPerUnit()
	}
	// orb measures the shortest way around, so wide extents are measured in halves
	_, cy := e.Center()
	half := e.Width() / 2
	return 2 * geo.BoundWidth(orb.Bound{Min: orb.Point{0, cy}, Max: orb.Point{half, cy}})
}

func (e Extent) HeightMeters() float64 {
	if !e.Valid() {
		return 0
	}
	if !e.srs.IsGeographic() {
		return e.Height() * e.srs.metersPerUnit()
	}
	return geo.BoundHeight(orb.Bound{Min: orb.Point{e.XMin(), e.YMin()}, Max: orb.Point{e.XMin(), e.YMax()}})
}

// WKT returns the extent as a polygon in well-known text.
func (e Extent) WKT() string {
	if !e.Valid() {
		return ""
	}
	return wkt.MustEncode(e.Polygon())
}

// Polygon returns the extent as a counterclockwise ring, or nil for an invalid extent.
func (e Extent) Polygon() geom.Polygon {
	if !e.Valid() {
		return nil
	}
	w, s, east, n := e.XMin(), e.YMin(), e.XMax(), e.YMax()
	return geom.Polygon{{{w, s}, {east, s}, {east, n}, {w, n}}}
}

func (e Extent) String() string {
	if !e.Valid() {
		return "INVALID"
	}
	return fmt.Sprintf("SRS=%s, xmin=%v ymin=%v xmax=%v ymax=%v", e.srs, e.XMin(), e.YMin(), e.XMax(), e.YMax())
}
