package tiling

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-spatial/geom/slippy"
	"github.com/pdok/pyramid/georef"
)

// TileKey addresses one tile in a scheme. The zero TileKey is invalid.
type TileKey struct {
	level  uint
	col    uint
	row    uint
	scheme *Scheme
}

// InvalidTileKey is returned by operations that cannot produce a key.
var InvalidTileKey = TileKey{}

func NewTileKey(level, col, row uint, scheme *Scheme) TileKey {
	if !scheme.OK() {
		return InvalidTileKey
	}
	return TileKey{level: level, col: col, row: row, scheme: scheme}
}

func (k TileKey) Level() uint     { return k.level }
func (k TileKey) Col() uint       { return k.col }
func (k TileKey) Row() uint       { return k.row }
func (k TileKey) Scheme() *Scheme { return k.scheme }

func (k TileKey) Valid() bool {
	return k.scheme.OK()
}

// Equal compares level, column, row and the horizontal identity of the schemes.
// Invalid keys only equal invalid keys.
func (k TileKey) Equal(other TileKey) bool {
	if !k.Valid() || !other.Valid() {
		return k.Valid() == other.Valid()
	}
	return k.level == other.level && k.col == other.col && k.row == other.row &&
		k.scheme.IsHorizontallyEquivalentTo(other.scheme)
}

func (k TileKey) Extent() georef.Extent {
	if !k.Valid() {
		return georef.Extent{}
	}
	return k.scheme.CalculateExtent(k.level, k.col, k.row)
}

// Parent returns the key one level up, or an invalid key at level 0.
func (k TileKey) Parent() TileKey {
	if !k.Valid() || k.level == 0 {
		return InvalidTileKey
	}
	return TileKey{level: k.level - 1, col: k.col / 2, row: k.row / 2, scheme: k.scheme}
}

// Child returns one of the four keys one level down: 0 is top left, 1 top right,
// 2 bottom left and 3 bottom right.
func (k TileKey) Child(quadrant uint) TileKey {
	if !k.Valid() || quadrant > 3 || k.col > math.MaxUint/2 || k.row > math.MaxUint/2 {
		return InvalidTileKey
	}
	return TileKey{
		level:  k.level + 1,
		col:    k.col*2 + quadrant&1,
		row:    k.row*2 + quadrant>>1,
		scheme: k.scheme,
	}
}

// QuadKey returns the quadtree path from the key's level 0 ancestor, one digit per level.
func (k TileKey) QuadKey() string {
	var sb strings.Builder
	for i := k.level; i > 0; i-- {
		digit := byte('0')
		mask := uint(1) << (i - 1)
		if k.col&mask != 0 {
			digit++
		}
		if k.row&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String()
}

// MortonCode interleaves the column (even bits) and row (odd bits) of the key.
func (k TileKey) MortonCode() (uint64, bool) {
	return toZ(k.col, k.row)
}

// FromMortonCode is the inverse of MortonCode.
func FromMortonCode(level uint, z uint64, scheme *Scheme) TileKey {
	col, row := fromZ(z)
	return NewTileKey(level, col, row, scheme)
}

// SlippyTile returns the key as a go-spatial slippy tile.
func (k TileKey) SlippyTile() *slippy.Tile {
	return &slippy.Tile{Z: k.level, X: k.col, Y: k.row}
}

func (k TileKey) String() string {
	if !k.Valid() {
		return "INVALID"
	}
	return fmt.Sprintf("%d/%d/%d", k.level, k.col, k.row)
}

// CreateTileKey returns the key of the tile containing (x, y) at the given level. The
// coordinate is in the scheme's reference. Positions outside the scheme and levels that
// cannot be addressed give an invalid key.
func (s *Scheme) CreateTileKey(x, y float64, level uint) TileKey {
	if !s.OK() || !s.extent.Contains(x, y) {
		return InvalidTileKey
	}
	wide, high, ok := s.gridSize(level)
	if !ok {
		return InvalidTileKey
	}
	rx := (x - s.extent.XMin()) / s.extent.Width()
	ry := (y - s.extent.YMin()) / s.extent.Height()
	col := tileIndex(rx*float64(wide), wide)
	row := tileIndex((1-ry)*float64(high), high)
	return TileKey{level: level, col: col, row: row, scheme: s}
}

// tileIndex floors a fractional grid position and clamps it to [0, n-1].
func tileIndex(f float64, n uint) uint {
	f = math.Floor(f)
	if f <= 0 {
		return 0
	}
	if f >= float64(n-1) {
		return n - 1
	}
	return uint(f)
}

// CreateTileKeyForPoint is like CreateTileKey, reprojecting the point when needed.
func (s *Scheme) CreateTileKeyForPoint(p georef.Point, level uint) TileKey {
	if !s.OK() || !p.Valid() {
		return InvalidTileKey
	}
	if !p.SRS().IsHorizontallyEquivalentTo(s.SRS()) {
		var err error
		if p, err = p.Transform(s.SRS()); err != nil {
			return InvalidTileKey
		}
	}
	return s.CreateTileKey(p.X(), p.Y(), level)
}
