package tiling

import (
	"fmt"
	"log"
	"math"

	"github.com/go-spatial/geom"
	"github.com/pdok/pyramid/georef"
)

// FromBounds creates a scheme over explicit bounds in the given reference.
func FromBounds(srsID, vdatumID string, bounds geom.Extent, tilesWide, tilesHigh uint) (*Scheme, error) {
	srs, err := resolve(srsID, vdatumID)
	if err != nil {
		return nil, err
	}
	return newScheme(srs, bounds, tilesWide, tilesHigh)
}

// FromFullParameters creates a scheme with an explicit geographic extent, for references
// whose extent cannot be reprojected reliably.
func FromFullParameters(srs *georef.SRS, bounds, geoBounds geom.Extent, tilesWide, tilesHigh uint) (*Scheme, error) {
	return newSchemeWithGeographic(srs, bounds, &geoBounds, tilesWide, tilesHigh)
}

// FromSpatialReference creates a scheme covering the natural bounds of the reference,
// choosing a level 0 grid that keeps tiles roughly square.
func FromSpatialReference(srs *georef.SRS) (*Scheme, error) {
	if srs == nil {
		return nil, fmt.Errorf("%w: missing spatial reference", ErrConfiguration)
	}
	bounds, ok := srs.Bounds()
	if !ok {
		return fromDefaultBounds(srs, 0, 0)
	}
	tilesWide, tilesHigh := aspectRatioGrid(bounds.XSpan(), bounds.YSpan())
	return newScheme(srs, bounds, tilesWide, tilesHigh)
}

// FromExtent creates a scheme covering the extent, choosing a level 0 grid that keeps
// tiles roughly square.
func FromExtent(extent georef.Extent) (*Scheme, error) {
	if !extent.Valid() {
		return nil, fmt.Errorf("%w: invalid extent", ErrInvalidInput)
	}
	tilesWide, tilesHigh := aspectRatioGrid(extent.Width(), extent.Height())
	return newScheme(extent.SRS(), extent.Bounds(), tilesWide, tilesHigh)
}

// FromSpatialReferenceID creates a scheme over the default bounds of a reference:
// the whole world for geographic references, the square Mercator world for Mercator
// references and the natural bounds otherwise.
func FromSpatialReferenceID(srsID, vdatumID string, tilesWide, tilesHigh uint) (*Scheme, error) {
	srs, err := resolve(srsID, vdatumID)
	if err != nil {
		return nil, err
	}
	return fromDefaultBounds(srs, tilesWide, tilesHigh)
}

func fromDefaultBounds(srs *georef.SRS, tilesWide, tilesHigh uint) (*Scheme, error) {
	switch {
	case srs.IsGeographic():
		return newScheme(srs, geom.Extent{-180, -90, 180, 90}, tilesWide, tilesHigh)
	case srs.IsMercator():
		e, err := mercatorEdge(srs)
		if err != nil {
			return nil, err
		}
		return newScheme(srs, geom.Extent{-e, -e, e, e}, tilesWide, tilesHigh)
	}
	bounds, ok := srs.Bounds()
	if !ok {
		log.Printf("[tiling] cannot create a tiling scheme for %s; a projected reference needs bounds", srs)
		return nil, fmt.Errorf("%w: bounds required for projected reference %s", ErrConfiguration, srs)
	}
	if tilesWide == 0 || tilesHigh == 0 {
		tilesWide, tilesHigh = 1, 1
		if ar := bounds.XSpan() / bounds.YSpan(); ar >= 1 {
			tilesWide = uint(ar)
		} else {
			tilesHigh = uint(1 / ar)
		}
	}
	return newScheme(srs, bounds, tilesWide, tilesHigh)
}

// mercatorEdge is the projected x of (180, 0), which bounds the square Mercator world.
func mercatorEdge(srs *georef.SRS) (float64, error) {
	e, _, err := srs.FromGeographic(180, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return e, nil
}

func aspectRatioGrid(width, height float64) (tilesWide, tilesHigh uint) {
	tilesWide, tilesHigh = 1, 1
	ar := width / height
	switch {
	case ar > 1.5:
		tilesWide = uint(math.Ceil(ar))
	case ar < 0.5:
		tilesHigh = uint(math.Ceil(1 / ar))
	}
	return tilesWide, tilesHigh
}

// WithSpatialReference returns a scheme with the same extent numbers and grid, but
// interpreted in another reference.
func (s *Scheme) WithSpatialReference(srs *georef.SRS) (*Scheme, error) {
	if !s.OK() {
		return nil, fmt.Errorf("%w: invalid scheme", ErrInvalidInput)
	}
	return newScheme(srs, s.extent.Bounds(), s.tilesWide, s.tilesHigh)
}

func resolve(srsID, vdatumID string) (*georef.SRS, error) {
	srs, err := georef.Resolve(srsID, vdatumID)
	if err != nil {
		log.Printf("[tiling] cannot create a tiling scheme; unrecognized reference %q", srsID)
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return srs, nil
}
