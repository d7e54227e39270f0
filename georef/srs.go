package georef

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom/proj"
	"github.com/go-spatial/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/pdok/pyramid/mathhelp"
)

var (
	ErrUnknownReference = errors.New("unknown spatial reference")
	ErrTransform        = errors.New("cannot transform coordinates")
)

const (
	// WGS84Radius is the equatorial radius of the WGS84 ellipsoid in meters.
	WGS84Radius = orb.EarthRadius

	geographicProj4 = "+proj=longlat +datum=WGS84 +no_defs"
	polarEpsilon    = 1e-9
)

type kind int

const (
	kindGeographic kind = iota
	kindSphericalMercator
	kindPlateCarree
	kindProj4
)

type definition struct {
	id       string
	name     string
	kind     kind
	proj4    string
	mercator bool
}

const worldMercatorProj4 = "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"

var definitions = map[string]definition{
	"epsg:4326":  {id: "epsg:4326", name: "WGS 84", kind: kindGeographic},
	"epsg:3857":  {id: "epsg:3857", name: "WGS 84 / Pseudo-Mercator", kind: kindSphericalMercator, mercator: true},
	"epsg:3395":  {id: "epsg:3395", name: "WGS 84 / World Mercator", kind: kindProj4, proj4: worldMercatorProj4, mercator: true},
	"epsg:32663": {id: "epsg:32663", name: "WGS 84 / World Equidistant Cylindrical", kind: kindPlateCarree},
}

var aliases = map[string]string{
	"wgs84":              "epsg:4326",
	"4326":               "epsg:4326",
	"crs84":              "epsg:4326",
	"ogc:crs84":          "epsg:4326",
	"spherical-mercator": "epsg:3857",
	"3857":               "epsg:3857",
	"epsg:900913":        "epsg:3857",
	"900913":             "epsg:3857",
	"epsg:3785":          "epsg:3857",
	"global-mercator":    "epsg:3395",
	"3395":               "epsg:3395",
	"plate-carree":       "epsg:32663",
	"plate-carre":        "epsg:32663",
	"eqc-wgs84":          "epsg:32663",
	"32663":              "epsg:32663",
}

var verticalDatums = map[string]string{
	"":          "",
	"egm84":     "egm84",
	"egm96":     "egm96",
	"egm2008":   "egm2008",
	"epsg:5773": "egm96",
	"epsg:3855": "egm2008",
}

// SRS is a resolved horizontal spatial reference with an optional vertical datum.
// SRS values are immutable and safe to share.
type SRS struct {
	horizontal string
	vertical   string
	name       string
	kind       kind
	mercator   bool
	radius     float64
	toMeter    float64

	toGeo   proj.Transformer
	fromGeo proj.Transformer
}

type srsKey struct{ horizontal, vertical string }

var resolved sync.Map

// Resolve looks up a spatial reference by identifier, e.g. "wgs84", "epsg:3857", "epsg:32631"
// or a proj4 definition starting with "+proj=". The vertical datum may be empty for
// ellipsoidal heights.
func Resolve(horizontal, vertical string) (*SRS, error) {
	h := strings.ToLower(strings.TrimSpace(horizontal))
	v, ok := verticalDatums[strings.ToLower(strings.TrimSpace(vertical))]
	if !ok {
		return nil, fmt.Errorf("%w: vertical datum %q", ErrUnknownReference, vertical)
	}
	if alias, ok := aliases[h]; ok {
		h = alias
	}
	key := srsKey{h, v}
	if srs, ok := resolved.Load(key); ok {
		return srs.(*SRS), nil
	}
	srs, err := build(h, strings.TrimSpace(horizontal))
	if err != nil {
		return nil, err
	}
	srs.vertical = v
	actual, _ := resolved.LoadOrStore(key, srs)
	return actual.(*SRS), nil
}

// MustResolve is like Resolve but panics on unknown identifiers.
func MustResolve(horizontal, vertical string) *SRS {
	srs, err := Resolve(horizontal, vertical)
	if err != nil {
		panic(err)
	}
	return srs
}

func build(id, raw string) (*SRS, error) {
	if def, ok := definitions[id]; ok {
		srs := &SRS{horizontal: def.id, name: def.name, kind: def.kind, mercator: def.mercator, radius: WGS84Radius, toMeter: 1}
		if def.kind == kindProj4 {
			if err := srs.attachProj4(def.proj4); err != nil {
				return nil, err
			}
		}
		return srs, nil
	}
	if zone, south, ok := utmZone(id); ok {
		def := fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", zone)
		if south {
			def += " +south"
		}
		srs := &SRS{horizontal: id, name: fmt.Sprintf("WGS 84 / UTM zone %d%s", zone, hemisphere(south)), kind: kindProj4, radius: WGS84Radius}
		if err := srs.attachProj4(def); err != nil {
			return nil, err
		}
		return srs, nil
	}
	if strings.HasPrefix(id, "+proj=") {
		// proj4 parameter values can be case-sensitive, keep the caller's spelling
		srs := &SRS{horizontal: id, name: raw, kind: kindProj4, radius: radiusFromProj4(raw)}
		if err := srs.attachProj4(raw); err != nil {
			return nil, err
		}
		if srs.isLongLat() {
			srs.kind = kindGeographic
		}
		return srs, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownReference, raw)
}

func (s *SRS) attachProj4(def string) error {
	sr, err := proj.Parse(def)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnknownReference, def, err)
	}
	geo, err := proj.Parse(geographicProj4)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownReference, err)
	}
	if s.toGeo, err = sr.NewTransform(geo); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnknownReference, def, err)
	}
	if s.fromGeo, err = geo.NewTransform(sr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnknownReference, def, err)
	}
	s.mercator = s.mercator || sr.Name == "merc"
	s.toMeter = sr.ToMeter
	if s.toMeter == 0 {
		s.toMeter = 1
	}
	if sr.Name == "longlat" {
		s.toMeter = 0
	}
	return nil
}

func (s *SRS) isLongLat() bool {
	return s.kind == kindProj4 && s.toMeter == 0
}

func utmZone(id string) (zone int, south bool, ok bool) {
	code, found := strings.CutPrefix(id, "epsg:")
	if !found || len(code) != 5 {
		return 0, false, false
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, false, false
	}
	switch {
	case n > 32600 && n <= 32660:
		return n - 32600, false, true
	case n > 32700 && n <= 32760:
		return n - 32700, true, true
	}
	return 0, false, false
}

func hemisphere(south bool) string {
	if south {
		return "S"
	}
	return "N"
}

func radiusFromProj4(def string) float64 {
	for _, param := range strings.Fields(def) {
		if v, ok := strings.CutPrefix(param, "+a="); ok {
			if a, err := strconv.ParseFloat(v, 64); err == nil && a > 0 {
				return a
			}
		}
	}
	return WGS84Radius
}

// HorizontalID is the canonical horizontal identifier, e.g. "epsg:4326".
func (s *SRS) HorizontalID() string {
	if s == nil {
		return ""
	}
	return s.horizontal
}

// VerticalID is the canonical vertical datum identifier; empty means ellipsoidal heights.
func (s *SRS) VerticalID() string {
	if s == nil {
		return ""
	}
	return s.vertical
}

func (s *SRS) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *SRS) IsGeographic() bool {
	return s != nil && s.kind == kindGeographic
}

func (s *SRS) IsMercator() bool {
	return s != nil && s.mercator
}

func (s *SRS) EquatorialRadius() float64 {
	return s.radius
}

func (s *SRS) IsHorizontallyEquivalentTo(other *SRS) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.horizontal == other.horizontal
}

func (s *SRS) IsEquivalentTo(other *SRS) bool {
	return s.IsHorizontallyEquivalentTo(other) && s.VerticalID() == other.VerticalID()
}

// Geographic returns the geographic reference on the same datum, keeping the vertical datum.
func (s *SRS) Geographic() *SRS {
	if s.IsGeographic() {
		return s
	}
	return MustResolve("epsg:4326", s.vertical)
}

// Bounds returns the natural bounds of the reference, if it has any.
func (s *SRS) Bounds() (geom.Extent, bool) {
	switch {
	case s == nil:
		return geom.Extent{}, false
	case s.kind == kindGeographic:
		return geom.Extent{-180, -90, 180, 90}, true
	case s.kind == kindSphericalMercator:
		e, _, err := s.FromGeographic(180, 0)
		if err != nil {
			return geom.Extent{}, false
		}
		return geom.Extent{-e, -e, e, e}, true
	case s.kind == kindPlateCarree:
		x, y, err := s.FromGeographic(180, 90)
		if err != nil {
			return geom.Extent{}, false
		}
		return geom.Extent{-x, -y, x, y}, true
	}
	return geom.Extent{}, false
}

func (s *SRS) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.vertical != "" {
		return s.horizontal + "+" + s.vertical
	}
	return s.horizontal
}

// ToGeographic converts a coordinate in this reference to longitude and latitude in degrees.
func (s *SRS) ToGeographic(x, y float64) (lon, lat float64, err error) {
	if s == nil {
		return 0, 0, fmt.Errorf("%w: nil reference", ErrTransform)
	}
	switch s.kind {
	case kindGeographic:
		lon, lat = x, y
	case kindSphericalMercator:
		p := project.Mercator.ToWGS84(orb.Point{x, y})
		lon, lat = p.Lon(), p.Lat()
	case kindPlateCarree:
		lon, lat = x/s.metersPerDegree(), y/s.metersPerDegree()
	case kindProj4:
		lon, lat, err = s.toGeo(x, y)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: (%v, %v) from %s: %v", ErrTransform, x, y, s, err)
		}
	}
	if !mathhelp.IsFinite(lon, lat) {
		return 0, 0, fmt.Errorf("%w: (%v, %v) from %s", ErrTransform, x, y, s)
	}
	return lon, lat, nil
}

// FromGeographic converts longitude and latitude in degrees to this reference.
func (s *SRS) FromGeographic(lon, lat float64) (x, y float64, err error) {
	if s == nil {
		return 0, 0, fmt.Errorf("%w: nil reference", ErrTransform)
	}
	if !mathhelp.IsFinite(lon, lat) || math.Abs(lat) > 90+polarEpsilon {
		return 0, 0, fmt.Errorf("%w: (%v, %v) is not a geographic position", ErrTransform, lon, lat)
	}
	switch s.kind {
	case kindGeographic:
		x, y = lon, lat
	case kindSphericalMercator:
		if math.Abs(lat) >= 90-polarEpsilon {
			return 0, 0, fmt.Errorf("%w: latitude %v is outside the Mercator domain", ErrTransform, lat)
		}
		p := project.WGS84.ToMercator(orb.Point{lon, lat})
		x, y = p.X(), p.Y()
	case kindPlateCarree:
		x, y = lon*s.metersPerDegree(), lat*s.metersPerDegree()
	case kindProj4:
		if s.mercator && math.Abs(lat) >= 90-polarEpsilon {
			return 0, 0, fmt.Errorf("%w: latitude %v is outside the Mercator domain", ErrTransform, lat)
		}
		x, y, err = s.fromGeo(lon, lat)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: (%v, %v) to %s: %v", ErrTransform, lon, lat, s, err)
		}
	}
	if !mathhelp.IsFinite(x, y) {
		return 0, 0, fmt.Errorf("%w: (%v, %v) to %s", ErrTransform, lon, lat, s)
	}
	return x, y, nil
}

// TransformPoint reprojects a single coordinate into another reference.
func (s *SRS) TransformPoint(x, y float64, to *SRS) (float64, float64, error) {
	if s.IsHorizontallyEquivalentTo(to) {
		if s == nil {
			return 0, 0, fmt.Errorf("%w: nil reference", ErrTransform)
		}
		return x, y, nil
	}
	lon, lat, err := s.ToGeographic(x, y)
	if err != nil {
		return 0, 0, err
	}
	return to.FromGeographic(lon, lat)
}

// TransformUnits converts a linear distance expressed in this reference's units into the
// units of another reference. Degrees convert to meters along the equator.
func (s *SRS) TransformUnits(distance float64, to *SRS) float64 {
	if s == nil || to == nil {
		return distance
	}
	switch {
	case s.IsGeographic() && to.IsGeographic():
		return distance
	case s.IsGeographic():
		return distance * s.metersPerDegree() / to.metersPerUnit()
	case to.IsGeographic():
		return distance * s.metersPerUnit() / to.metersPerDegree()
	}
	return distance * s.metersPerUnit() / to.metersPerUnit()
}

func (s *SRS) metersPerDegree() float64 {
	return 2 * math.Pi * s.radius / 360
}

func (s *SRS) metersPerUnit() float64 {
	if s.toMeter == 0 {
		return 1
	}
	return s.toMeter
}
