package tiling

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/perimeterx/marshmallow"
)

// Options is the serializable description of a scheme: either the name of a
// well-known scheme, or a reference with optional bounds and level 0 grid.
type Options struct {
	Name      string  `json:"name,omitempty"`
	SRS       string  `json:"srs,omitempty" validate:"required_without=Name"`
	VDatum    string  `json:"vdatum,omitempty"`
	Bounds    *Bounds `json:"bounds,omitempty"`
	TilesWide uint    `json:"tilesWide,omitempty"`
	TilesHigh uint    `json:"tilesHigh,omitempty"`
}

type Bounds struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax" validate:"gtfield=XMin"`
	YMax float64 `json:"ymax" validate:"gtfield=YMin"`
}

func (b Bounds) Extent() geom.Extent {
	return geom.Extent{b.XMin, b.YMin, b.XMax, b.YMax}
}

// legacy option keys
const (
	profileKey   = "profile"
	vsrsKey      = "vsrs"
	tilesWideKey = "num_tiles_wide_at_lod_0"
	tilesHighKey = "num_tiles_high_at_lod_0"
)

func (o *Options) UnmarshalJSON(data []byte) error {
	specials, err := marshmallow.Unmarshal(data, o, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	if o.Name == "" {
		if o.Name, err = specialString(specials, profileKey); err != nil {
			return err
		}
	}
	if o.VDatum == "" {
		if o.VDatum, err = specialString(specials, vsrsKey); err != nil {
			return err
		}
	}
	if o.TilesWide == 0 {
		if o.TilesWide, err = specialUint(specials, tilesWideKey); err != nil {
			return err
		}
	}
	if o.TilesHigh == 0 {
		if o.TilesHigh, err = specialUint(specials, tilesHighKey); err != nil {
			return err
		}
	}
	return o.Validate()
}

func (o *Options) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func specialString(specials map[string]interface{}, key string) (string, error) {
	raw, ok := specials[key]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q should be a string, got %v", ErrConfiguration, key, raw)
	}
	return s, nil
}

func specialUint(specials map[string]interface{}, key string) (uint, error) {
	raw, ok := specials[key]
	if !ok {
		return 0, nil
	}
	f, ok := raw.(float64)
	if !ok || f < 0 || f != float64(uint(f)) {
		return 0, fmt.Errorf("%w: %q should be a non-negative integer, got %v", ErrConfiguration, key, raw)
	}
	return uint(f), nil
}

// FromOptions creates a scheme from its serialized description. A name takes precedence,
// then a reference with bounds, then a reference with its default bounds. Tile counts are
// only used when both are given.
func FromOptions(o Options) (*Scheme, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	tilesWide, tilesHigh := o.TilesWide, o.TilesHigh
	if tilesWide == 0 || tilesHigh == 0 {
		tilesWide, tilesHigh = 0, 0
	}
	switch {
	case o.Name != "":
		return FromWellKnownName(o.Name, o.VDatum)
	case o.Bounds != nil:
		return FromBounds(o.SRS, o.VDatum, o.Bounds.Extent(), tilesWide, tilesHigh)
	default:
		return FromSpatialReferenceID(o.SRS, o.VDatum, tilesWide, tilesHigh)
	}
}

// Options returns the description of the scheme. Well-known schemes are described by
// their name only.
func (s *Scheme) Options() Options {
	if !s.OK() {
		return Options{}
	}
	srs := s.SRS()
	if s.wellKnownName != "" {
		return Options{Name: s.wellKnownName, VDatum: srs.VerticalID()}
	}
	bounds := s.extent.Bounds()
	return Options{
		SRS:       srs.HorizontalID(),
		VDatum:    srs.VerticalID(),
		Bounds:    &Bounds{XMin: bounds.MinX(), YMin: bounds.MinY(), XMax: bounds.MaxX(), YMax: bounds.MaxY()},
		TilesWide: s.tilesWide,
		TilesHigh: s.tilesHigh,
	}
}
