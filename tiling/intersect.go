package tiling

import (
	"log"
	"math"

	"github.com/pdok/pyramid/georef"
	"github.com/pdok/pyramid/mathhelp"
)

// snapTolerance is the fraction of a tile's size within which an extent edge is taken to
// lie on the tile boundary.
const snapTolerance = 1e-6

// maxPreallocatedKeys bounds the capacity reserved up front for a tile listing.
const maxPreallocatedKeys = 1 << 16

// ClampAndTransformExtent brings an extent into the scheme's reference, limited to the
// scheme's extent. The second result reports whether the returned extent differs from
// the scheme's extent (or, when the reprojection went through geographic coordinates,
// whether the input was cut off). Whole-world inputs return the scheme's extent.
// An invalid extent is returned when the input cannot be brought into the scheme.
func (s *Scheme) ClampAndTransformExtent(input georef.Extent) (georef.Extent, bool) {
	if !s.OK() || !input.Valid() {
		return georef.Extent{}, false
	}
	if input.IsWholeEarth() {
		return s.extent, !s.extent.IsWholeEarth()
	}

	if inMine := input.Transform(s.SRS()); inMine.Valid() {
		intersection := inMine.Intersection(s.extent)
		return intersection, !intersection.Equal(s.extent)
	}

	// The direct reprojection failed, typically because the input reaches outside the
	// domain of the scheme's projection. Clamp in geographic coordinates instead.
	gcs := input
	if !input.SRS().IsGeographic() {
		gcs = input.Transform(s.SRS().Geographic())
	}
	if !gcs.Valid() || !gcs.Intersects(s.latLongExtent) {
		return georef.Extent{}, false
	}
	ll := s.latLongExtent
	clamped := georef.NewExtent(gcs.SRS(),
		mathhelp.Clamp(gcs.XMin(), ll.XMin(), ll.XMax()),
		mathhelp.Clamp(gcs.YMin(), ll.YMin(), ll.YMax()),
		mathhelp.Clamp(gcs.XMax(), ll.XMin(), ll.XMax()),
		mathhelp.Clamp(gcs.YMax(), ll.YMin(), ll.YMax()))
	wasClamped := !clamped.Equal(gcs)
	if clamped.SRS().IsEquivalentTo(s.SRS()) {
		return clamped, wasClamped
	}
	return clamped.Transform(s.SRS()), wasClamped
}

// IntersectingTiles returns the keys in this scheme covering the area of a key from any
// scheme, at the level whose resolution best matches the key's level. A key from an
// equivalent scheme is returned as is.
func (s *Scheme) IntersectingTiles(key TileKey) []TileKey {
	if !s.OK() || !key.Valid() {
		return nil
	}
	if s.IsHorizontallyEquivalentTo(key.Scheme()) {
		return []TileKey{key}
	}
	level := s.EquivalentLevel(key.Scheme(), key.Level())
	return s.IntersectingTilesForExtent(key.Extent(), level)
}

// IntersectingTilesForExtent returns the keys at the given level whose tiles intersect
// the extent, column by column. Extents crossing the antimeridian are handled in parts.
func (s *Scheme) IntersectingTilesForExtent(extent georef.Extent, level uint) []TileKey {
	if !s.OK() || !extent.Valid() {
		return nil
	}

	transformed := extent
	if !s.SRS().IsHorizontallyEquivalentTo(extent.SRS()) {
		if west, east, ok := extent.SplitAcrossAntimeridian(); ok {
			return append(s.IntersectingTilesForExtent(west, level), s.IntersectingTilesForExtent(east, level)...)
		}
		transformed, _ = s.ClampAndTransformExtent(extent)
		if !transformed.Valid() {
			return nil
		}
	}

	if west, east, ok := transformed.SplitAcrossAntimeridian(); ok {
		return append(s.tilesInExtent(west, level), s.tilesInExtent(east, level)...)
	}
	return s.tilesInExtent(transformed, level)
}

// tilesInExtent enumerates the tiles covering a non crossing extent in the scheme's reference.
func (s *Scheme) tilesInExtent(extent georef.Extent, level uint) []TileKey {
	if extent.CrossesAntimeridian() {
		log.Printf("[tiling] cannot find tiles for an extent crossing the antimeridian: %v", extent)
		return nil
	}
	if !extent.Valid() {
		return nil
	}
	numWide, numHigh, ok := s.gridSize(level)
	if !ok || uint64(numWide) > math.MaxInt64 || uint64(numHigh) > math.MaxInt64 {
		log.Printf("[tiling] cannot address the tiles of level %d of %v", level, s)
		return nil
	}

	width, height := s.TileDimensions(level)
	west := extent.XMin() - s.extent.XMin()
	east := extent.XMax() - s.extent.XMin()
	north := s.extent.YMax() - extent.YMax()
	south := s.extent.YMax() - extent.YMin()

	minCol, maxCol := snappedRange(west, east, width)
	minRow, maxRow := snappedRange(north, south, height)

	if minCol >= int64(numWide) || minRow >= int64(numHigh) || maxCol < 0 || maxRow < 0 {
		return nil
	}
	minCol = mathhelp.Clamp(minCol, 0, int64(numWide)-1)
	maxCol = mathhelp.Clamp(maxCol, 0, int64(numWide)-1)
	minRow = mathhelp.Clamp(minRow, 0, int64(numHigh)-1)
	maxRow = mathhelp.Clamp(maxRow, 0, int64(numHigh)-1)

	cols, rows := uint(maxCol-minCol)+1, uint(maxRow-minRow)+1
	capacity := uint(maxPreallocatedKeys)
	if !mathhelp.MulOverflows(cols, rows) && cols*rows < capacity {
		capacity = cols * rows
	}
	keys := make([]TileKey, 0, capacity)
	for c := minCol; c <= maxCol; c++ {
		for r := minRow; r <= maxRow; r++ {
			keys = append(keys, TileKey{level: level, col: uint(c), row: uint(r), scheme: s})
		}
	}
	return keys
}

// snappedRange returns the indices of the tiles of the given size spanning [lo, hi],
// measured from the grid origin. An edge that falls on a tile boundary within
// floating-point tolerance does not pull in the tile on the far side of that boundary.
func snappedRange(lo, hi, size float64) (first, last int64) {
	first = truncate(lo / size)
	last = truncate(hi / size)

	epsilon := snapTolerance * size
	if first < math.MaxInt64 && mathhelp.Equivalent(lo-size*float64(first), size, epsilon) {
		first++
	}
	if last > math.MinInt64 && mathhelp.Equivalent(size*(float64(last)+1)-hi, size, epsilon) {
		last--
	}
	if last < first {
		last = first
	}
	return first, last
}

// truncate converts toward zero, saturating at the bounds of int64. NaN gives 0.
func truncate(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// EquivalentLevel returns the level in this scheme whose tile height best matches the
// tile height of otherLevel in the other scheme. Global geodetic and spherical Mercator
// levels are treated as aligned.
func (s *Scheme) EquivalentLevel(other *Scheme, otherLevel uint) uint {
	if !other.OK() || !s.OK() {
		return otherLevel
	}
	if other.IsHorizontallyEquivalentTo(s) {
		return otherLevel
	}
	gg, err := globalGeodetic()
	if err != nil {
		log.Printf("[tiling] equivalent level: %v", err)
		return otherLevel
	}
	sm, err := sphericalMercator()
	if err != nil {
		log.Printf("[tiling] equivalent level: %v", err)
		return otherLevel
	}
	if (other.IsHorizontallyEquivalentTo(sm) && s.IsHorizontallyEquivalentTo(gg)) ||
		(other.IsHorizontallyEquivalentTo(gg) && s.IsHorizontallyEquivalentTo(sm)) {
		return otherLevel
	}

	width, height := other.TileDimensions(otherLevel)
	if width <= 0 || height <= 0 {
		log.Printf("[tiling] equivalent level: zero tile dimension at level %d of %v", otherLevel, other)
		return otherLevel
	}
	return s.LevelForGroundHeight(other.SRS().TransformUnits(height, s.SRS()))
}
