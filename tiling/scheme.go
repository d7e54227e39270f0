package tiling

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/go-spatial/geom"
	"github.com/pdok/pyramid/georef"
	"github.com/pdok/pyramid/mathhelp"
)

var (
	ErrConfiguration = errors.New("invalid tiling scheme configuration")
	ErrInvalidInput  = errors.New("invalid input")
)

// Scheme is a tiling scheme: a rectangular extent in a spatial reference, divided into
// tilesWide x tilesHigh tiles at level 0, with every next level subdividing each tile
// into four. A Scheme is immutable once constructed and can be shared freely.
type Scheme struct {
	extent        georef.Extent
	latLongExtent georef.Extent
	tilesWide     uint
	tilesHigh     uint
	wellKnownName string

	fullSignature       string
	horizontalSignature string
	hash                uint64
}

// newScheme builds a scheme and computes its signatures. Zero tile counts select the
// default grid: 2x1 for geographic references, 1x1 otherwise.
func newScheme(srs *georef.SRS, bounds geom.Extent, tilesWide, tilesHigh uint) (*Scheme, error) {
	return newSchemeWithGeographic(srs, bounds, nil, tilesWide, tilesHigh)
}

func newSchemeWithGeographic(srs *georef.SRS, bounds geom.Extent, geoBounds *geom.Extent, tilesWide, tilesHigh uint) (*Scheme, error) {
	if srs == nil {
		return nil, fmt.Errorf("%w: missing spatial reference", ErrConfiguration)
	}
	if tilesWide == 0 {
		tilesWide = 1
		if srs.IsGeographic() {
			tilesWide = 2
		}
	}
	if tilesHigh == 0 {
		tilesHigh = 1
	}
	extent := georef.NewExtentFromBounds(srs, bounds)
	if !extent.Valid() || extent.CrossesAntimeridian() || extent.Width() <= 0 || extent.Height() <= 0 {
		return nil, fmt.Errorf("%w: degenerate extent %v", ErrInvalidInput, bounds)
	}

	s := &Scheme{extent: extent, tilesWide: tilesWide, tilesHigh: tilesHigh}
	switch {
	case geoBounds != nil:
		s.latLongExtent = georef.NewExtentFromBounds(srs.Geographic(), *geoBounds)
	case srs.IsGeographic():
		s.latLongExtent = extent
	default:
		s.latLongExtent = extent.Transform(srs.Geographic())
		if !s.latLongExtent.Valid() {
			log.Printf("[tiling] no geographic extent for %v", extent)
		}
	}
	if err := s.computeSignatures(); err != nil {
		return nil, err
	}
	return s, nil
}

// signature is the geometric identity of a scheme. Fields are encoded in declaration
// order, which keeps the encoding stable.
type signature struct {
	SRS       string     `json:"srs"`
	VDatum    string     `json:"vdatum"`
	Bounds    [4]float64 `json:"bounds"`
	TilesWide uint       `json:"tilesWide"`
	TilesHigh uint       `json:"tilesHigh"`
}

func (s *Scheme) computeSignatures() error {
	sig := signature{
		SRS:       s.extent.SRS().HorizontalID(),
		VDatum:    s.extent.SRS().VerticalID(),
		Bounds:    s.extent.Bounds(),
		TilesWide: s.tilesWide,
		TilesHigh: s.tilesHigh,
	}
	full, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	sig.VDatum = ""
	horizontal, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	s.hash = xxhash.Sum64(full)
	s.fullSignature = strconv.FormatUint(s.hash, 16)
	s.horizontalSignature = strconv.FormatUint(xxhash.Sum64(horizontal), 16)
	return nil
}

// OK reports whether the scheme is usable.
func (s *Scheme) OK() bool {
	return s != nil && s.extent.Valid()
}

func (s *Scheme) SRS() *georef.SRS {
	if s == nil {
		return nil
	}
	return s.extent.SRS()
}

func (s *Scheme) Extent() georef.Extent {
	return s.extent
}

// LatLongExtent is the scheme's extent in the geographic reference on the same datum.
func (s *Scheme) LatLongExtent() georef.Extent {
	return s.latLongExtent
}

// RootTiles returns the number of tiles at level 0.
func (s *Scheme) RootTiles() (wide, high uint) {
	return s.tilesWide, s.tilesHigh
}

func (s *Scheme) WellKnownName() string {
	return s.wellKnownName
}

func (s *Scheme) FullSignature() string {
	return s.fullSignature
}

func (s *Scheme) HorizontalSignature() string {
	return s.horizontalSignature
}

func (s *Scheme) Hash() uint64 {
	return s.hash
}

// IsFullyEquivalentTo compares the horizontal reference, vertical datum, extent and grid.
func (s *Scheme) IsFullyEquivalentTo(other *Scheme) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.fullSignature == other.fullSignature
}

// IsHorizontallyEquivalentTo compares everything but the vertical datum.
func (s *Scheme) IsHorizontallyEquivalentTo(other *Scheme) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.horizontalSignature == other.horizontalSignature
}

// TileDimensions returns the width and height of a tile at the given level, in the
// units of the scheme's reference.
func (s *Scheme) TileDimensions(level uint) (width, height float64) {
	width = s.extent.Width() / float64(s.tilesWide)
	height = s.extent.Height() / float64(s.tilesHigh)
	factor := math.Ldexp(1, int(level))
	return width / factor, height / factor
}

// NumTiles returns the size of the tile grid at the given level, or zeros when the grid
// cannot be addressed.
func (s *Scheme) NumTiles(level uint) (wide, high uint) {
	wide, high, _ = s.gridSize(level)
	return wide, high
}

func (s *Scheme) gridSize(level uint) (wide, high uint, ok bool) {
	factor, ok := mathhelp.Pow2(level)
	if !ok || mathhelp.MulOverflows(s.tilesWide, factor) || mathhelp.MulOverflows(s.tilesHigh, factor) {
		return 0, 0, false
	}
	return s.tilesWide * factor, s.tilesHigh * factor, true
}

// CalculateExtent returns the extent of the tile at level, col, row.
// Rows count from the top of the scheme's extent.
func (s *Scheme) CalculateExtent(level, col, row uint) georef.Extent {
	width, height := s.TileDimensions(level)
	xmin := s.extent.XMin() + width*float64(col)
	ymax := s.extent.YMax() - height*float64(row)
	return georef.NewExtent(s.SRS(), xmin, ymax-height, xmin+width, ymax)
}

// LevelForGroundHeight returns the level whose tile height is closest, in the log2 sense,
// to the given height in the units of the scheme's reference. A height that is not
// positive and finite gives level 0.
func (s *Scheme) LevelForGroundHeight(height float64) uint {
	_, base := s.TileDimensions(0)
	if height <= 0 || !mathhelp.IsFinite(height) {
		return 0
	}
	level := math.Round(math.Log2(base / height))
	if level < 0 {
		return 0
	}
	return uint(level)
}

// LevelForGroundResolution returns the level at which a tile of tileSize pixels has the
// given ground resolution per pixel. Like LevelForGroundHeight it answers level 0, the
// coarsest level, for a resolution or tile size of zero or less.
func (s *Scheme) LevelForGroundResolution(resolution float64, tileSize uint) uint {
	return s.LevelForGroundHeight(resolution * float64(tileSize))
}

// RootKeys returns the level 0 keys, column by column.
func (s *Scheme) RootKeys() []TileKey {
	return s.AllKeysAtLevel(0)
}

func (s *Scheme) AllKeysAtLevel(level uint) []TileKey {
	wide, high, ok := s.gridSize(level)
	if !ok || mathhelp.MulOverflows(wide, high) {
		return nil
	}
	keys := make([]TileKey, 0, wide*high)
	for c := uint(0); c < wide; c++ {
		for r := uint(0); r < high; r++ {
			keys = append(keys, NewTileKey(level, c, r, s))
		}
	}
	return keys
}

func (s *Scheme) String() string {
	if !s.OK() {
		return "INVALID"
	}
	name := s.wellKnownName
	if name == "" {
		name = "custom"
	}
	return fmt.Sprintf("%s [%v] tiles=%dx%d geo=[%v]", name, s.extent, s.tilesWide, s.tilesHigh, s.latLongExtent)
}
