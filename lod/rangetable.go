// Package lod computes per level visibility and morph ranges for continuous level of
// detail over a tiling scheme.
package lod

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pdok/pyramid/mathhelp"
	"github.com/pdok/pyramid/tiling"
)

// Level is the range entry of one level. Rows outside [MinValidRow, MaxValidRow] are
// not subdivided. The zero Level is returned for levels that are not in the table.
type Level struct {
	VisibilityRange float64 `json:"visibilityRange"`
	MorphStart      float64 `json:"morphStart"`
	MorphEnd        float64 `json:"morphEnd"`
	MinValidRow     uint    `json:"minValidRow"`
	MaxValidRow     uint    `json:"maxValidRow"`
}

// ValidRow reports whether the row lies in the level's valid band.
func (l Level) ValidRow(row uint) bool {
	return row >= l.MinValidRow && row <= l.MaxValidRow
}

type table struct {
	firstLevel uint
	levels     []Level
}

// RangeTable holds the ranges of a contiguous span of levels. It is populated once with
// Initialize and can be read concurrently afterwards. The zero RangeTable is empty and
// uses the default Tuning.
type RangeTable struct {
	tuning Tuning

	mu    sync.Mutex
	table atomic.Pointer[table]
}

// NewRangeTable creates an empty table with custom tuning.
func NewRangeTable(tuning Tuning) (*RangeTable, error) {
	tuning, err := tuning.withDefaults()
	if err != nil {
		return nil, err
	}
	return &RangeTable{tuning: tuning}, nil
}

// Initialize computes the ranges of firstLevel..maxLevel for the scheme. morphFactor
// scales all ranges. With restrictPolarSubdivision, geographic schemes get a valid row
// band that excludes thin tiles near the poles.
// Initializing a populated table does nothing.
func (rt *RangeTable) Initialize(firstLevel, maxLevel uint, scheme *tiling.Scheme, morphFactor float64, restrictPolarSubdivision bool) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.table.Load() != nil {
		return nil
	}
	if firstLevel > maxLevel {
		log.Printf("[lod] inconsistent first and max levels: %d > %d", firstLevel, maxLevel)
		return fmt.Errorf("%w: first level %d exceeds max level %d", tiling.ErrConfiguration, firstLevel, maxLevel)
	}
	if !scheme.OK() {
		return fmt.Errorf("%w: invalid tiling scheme", tiling.ErrConfiguration)
	}
	if morphFactor <= 0 || !mathhelp.IsFinite(morphFactor) {
		return fmt.Errorf("%w: morph factor must be positive, got %v", tiling.ErrConfiguration, morphFactor)
	}
	if wide, _ := scheme.NumTiles(maxLevel); wide == 0 {
		return fmt.Errorf("%w: level %d cannot be addressed in %v", tiling.ErrConfiguration, maxLevel, scheme)
	}
	tuning, err := rt.tuning.withDefaults()
	if err != nil {
		return err
	}

	levels := make([]Level, maxLevel+1)
	for level := range levels {
		wide, high := scheme.NumTiles(uint(level))
		center := tiling.NewTileKey(uint(level), wide/2, high/2, scheme)
		radius := center.Extent().BoundingRadius()
		levels[level] = Level{
			VisibilityRange: radius * morphFactor * tuning.rangeFactor(),
			MaxValidRow:     math.MaxUint,
		}
	}

	prev := 0.0
	polar := restrictPolarSubdivision && scheme.SRS().IsGeographic()
	for level := int(maxLevel); level >= 0; level-- {
		l := &levels[level]
		span := l.VisibilityRange - prev
		l.MorphEnd = l.VisibilityRange
		l.MorphStart = prev + span*tuning.MorphStartRatio
		prev = l.MorphEnd

		if polar && uint(level) >= tuning.PolarStartLevel {
			minAR := polarAspectRatio(tuning, uint(level), maxLevel)
			l.MinValidRow, l.MaxValidRow = polarBand(scheme, uint(level), minAR)
		}
	}

	rt.table.Store(&table{firstLevel: firstLevel, levels: levels[firstLevel:]})
	return nil
}

// polarAspectRatio interpolates the minimum tile aspect ratio from the start level to
// the max level.
func polarAspectRatio(tuning Tuning, level, maxLevel uint) float64 {
	t := 0.0
	if maxLevel > tuning.PolarStartLevel {
		t = float64(level-tuning.PolarStartLevel) / float64(maxLevel-tuning.PolarStartLevel)
	}
	return tuning.PolarStartAspectRatio + (tuning.PolarEndAspectRatio-tuning.PolarStartAspectRatio)*t
}

// polarBand scans from the equator towards the north pole for the first row whose tiles
// are thinner than minAR. That row and everything poleward of it, mirrored on the south
// side, fall outside the band.
func polarBand(scheme *tiling.Scheme, level uint, minAR float64) (minRow, maxRow uint) {
	_, high := scheme.NumTiles(level)
	for y := int(high / 2); y >= 0; y-- {
		e := scheme.CalculateExtent(level, 0, uint(y))
		height := e.HeightMeters()
		if height <= 0 {
			continue
		}
		if e.WidthMeters()/height < minAR {
			minRow = min(uint(y)+1, high-1)
			return minRow, high - 1 - minRow
		}
	}
	return 0, math.MaxUint
}

// Populated reports whether Initialize has succeeded.
func (rt *RangeTable) Populated() bool {
	return rt.table.Load() != nil
}

func (rt *RangeTable) FirstLevel() uint {
	if t := rt.table.Load(); t != nil {
		return t.firstLevel
	}
	return 0
}

func (rt *RangeTable) NumLevels() int {
	if t := rt.table.Load(); t != nil {
		return len(t.levels)
	}
	return 0
}

// Get returns the entry of a level, or the zero Level outside the table.
func (rt *RangeTable) Get(level uint) Level {
	t := rt.table.Load()
	if t == nil || level < t.firstLevel || level-t.firstLevel >= uint(len(t.levels)) {
		return Level{}
	}
	return t.levels[level-t.firstLevel]
}

// Query returns the ranges for a tile, all zero when its level is outside the table or
// its row is outside the level's valid band.
func (rt *RangeTable) Query(key tiling.TileKey) (visibilityRange, morphStart, morphEnd float64) {
	if !key.Valid() {
		return 0, 0, 0
	}
	l := rt.Get(key.Level())
	if !l.ValidRow(key.Row()) {
		return 0, 0, 0
	}
	return l.VisibilityRange, l.MorphStart, l.MorphEnd
}
