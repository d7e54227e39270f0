package georef

import (
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/pdok/pyramid/mathhelp"
)

// Point is a 2D position in a spatial reference. The zero Point is invalid.
type Point struct {
	srs  *SRS
	x, y float64
}

func NewPoint(srs *SRS, x, y float64) Point {
	return Point{srs: srs, x: x, y: y}
}

func (p Point) Valid() bool {
	return p.srs != nil && mathhelp.IsFinite(p.x, p.y)
}

func (p Point) X() float64 { return p.x }
func (p Point) Y() float64 { return p.y }
func (p Point) SRS() *SRS  { return p.srs }

func (p Point) Geom() geom.Point {
	return geom.Point{p.x, p.y}
}

// Transform reprojects the point.
func (p Point) Transform(to *SRS) (Point, error) {
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: invalid point", ErrTransform)
	}
	x, y, err := p.srs.TransformPoint(p.x, p.y, to)
	if err != nil {
		return Point{}, err
	}
	return Point{srs: to, x: x, y: y}, nil
}

func (p Point) String() string {
	if !p.Valid() {
		return "INVALID"
	}
	return fmt.Sprintf("POINT (%v %v) %s", p.x, p.y, p.srs)
}
