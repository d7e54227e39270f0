package lod

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pdok/pyramid/tiling"
)

// Tuning holds the empirical constants of the range computation. Zero fields take their
// default, so the zero Tuning is the default tuning.
type Tuning struct {
	// MorphStartRatio is the fraction of a level's own range after which morphing starts.
	MorphStartRatio float64 `json:"morphStartRatio" default:"0.66" validate:"gt=0,lt=1"`
	// RangeScale and FootprintDivisor turn a tile's bounding radius into a visibility range.
	RangeScale       float64 `json:"rangeScale" default:"2" validate:"gt=0"`
	FootprintDivisor float64 `json:"footprintDivisor" default:"1.405" validate:"gt=0"`
	// PolarStartLevel is the first level at which polar rows can be excluded.
	PolarStartLevel uint `json:"polarStartLevel" default:"6"`
	// PolarStartAspectRatio and PolarEndAspectRatio bound the minimum width/height ratio
	// of a tile, at PolarStartLevel and at the maximum level.
	PolarStartAspectRatio float64 `json:"polarStartAspectRatio" default:"0.1" validate:"gt=0"`
	PolarEndAspectRatio   float64 `json:"polarEndAspectRatio" default:"0.4" validate:"gtefield=PolarStartAspectRatio"`
}

// withDefaults returns the tuning with defaults filled in, validated.
func (t Tuning) withDefaults() (Tuning, error) {
	if err := defaults.Set(&t); err != nil {
		return Tuning{}, fmt.Errorf("%w: %w", tiling.ErrConfiguration, err)
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(t); err != nil {
		return Tuning{}, fmt.Errorf("%w: %w", tiling.ErrConfiguration, err)
	}
	return t, nil
}

// rangeFactor is applied to a bounding radius and the caller's morph factor.
func (t Tuning) rangeFactor() float64 {
	return t.RangeScale / t.FootprintDivisor
}
