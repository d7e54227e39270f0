package tiling

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/pdok/pyramid/tms20"
)

// boundsSnapTolerance is the relative difference below which tile matrix set bounds are
// replaced by the natural bounds of the reference, so rounded published origins still
// match the well-known schemes.
const boundsSnapTolerance = 1e-12

// FromTileMatrixSet creates a scheme from an OGC tile matrix set whose tile matrices form
// a quadtree. Tile matrix 0 is level 0.
func FromTileMatrixSet(tms tms20.TileMatrixSet) (*Scheme, error) {
	if err := tms.IsQuadTree(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, tms.ID, err)
	}
	srsID, err := tms.SRSID()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, tms.ID, err)
	}
	srs, err := resolve(srsID, "")
	if err != nil {
		return nil, err
	}
	bottomLeft, topRight, err := tms.MatrixBoundingBox(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	bounds := geom.Extent{bottomLeft.X(), bottomLeft.Y(), topRight.X(), topRight.Y()}
	if natural, ok := srs.Bounds(); ok && closeBounds(bounds, natural) {
		bounds = natural
	}
	tm := tms.TileMatrices[0]
	return newScheme(srs, bounds, tm.MatrixWidth, tm.MatrixHeight)
}

func closeBounds(a, b geom.Extent) bool {
	scale := math.Max(a.XSpan(), a.YSpan())
	for i := range a {
		if math.Abs(a[i]-b[i]) > boundsSnapTolerance*scale {
			return false
		}
	}
	return true
}
