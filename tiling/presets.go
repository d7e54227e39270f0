package tiling

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/pdok/pyramid/georef"
	"github.com/pdok/pyramid/mapslicehelp"
	"github.com/pdok/pyramid/tms20"
	"github.com/perimeterx/marshmallow"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	GlobalGeodetic    = "global-geodetic"
	SphericalMercator = "spherical-mercator"
	GlobalMercator    = "global-mercator"
	PlateCarree       = "plate-carree"
)

var (
	//go:embed presets/*.json
	embeddedPresetsFS embed.FS

	loadPresets = sync.OnceValues(func() (*presetRegistry, error) {
		return newPresetRegistry(embeddedPresetsFS, "presets")
	})
)

// BoundsFrom tells how the bounds of a preset are found.
type BoundsFrom string

const (
	// BoundsExplicit uses the bounds in the preset.
	BoundsExplicit BoundsFrom = "explicit"
	// BoundsAntimeridian uses the square spanned by the projected position (180, 0).
	BoundsAntimeridian BoundsFrom = "antimeridian"
	// BoundsGeographicCorner uses the rectangle spanned by the projected position (-180, -90).
	BoundsGeographicCorner BoundsFrom = "geographic-corner"
)

func (b *BoundsFrom) UnmarshalJSON(data []byte) error {
	return tms20.UnmarshalJSONMapUsingUnmarshalJSONFromMap(b, data)
}

func (b *BoundsFrom) UnmarshalJSONFromMap(data interface{}) error {
	dataString, ok := data.(string)
	if !ok {
		return fmt.Errorf(`BoundsFrom data is not a string but a %T`, data)
	}
	switch BoundsFrom(dataString) {
	case "":
		fallthrough
	case BoundsExplicit:
		*b = BoundsExplicit
	case BoundsAntimeridian:
		*b = BoundsAntimeridian
	case BoundsGeographicCorner:
		*b = BoundsGeographicCorner
	default:
		return fmt.Errorf(`unknown BoundsFrom: %v`, data)
	}
	return nil
}

// Preset is a well-known tiling scheme definition.
type Preset struct {
	Name       string     `json:"name" validate:"required"`
	Aliases    []string   `json:"aliases,omitempty"`
	SRS        string     `json:"srs" validate:"required"`
	BoundsFrom BoundsFrom `json:"boundsFrom" default:"explicit" validate:"oneof=explicit antimeridian geographic-corner"`
	Bounds     *Bounds    `json:"bounds,omitempty" validate:"required_if=BoundsFrom explicit"`
	TilesWide  uint       `json:"tilesWide" default:"1" validate:"min=1"`
	TilesHigh  uint       `json:"tilesHigh" default:"1" validate:"min=1"`
}

func (p *Preset) UnmarshalJSON(data []byte) error {
	err := defaults.Set(p)
	if err != nil {
		return err
	}
	if _, err = marshmallow.Unmarshal(data, p, marshmallow.WithExcludeKnownFieldsFromMap(true)); err != nil {
		return err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(p)
}

func (p Preset) bounds(srs *georef.SRS) (geom.Extent, error) {
	switch p.BoundsFrom {
	case BoundsAntimeridian:
		e, err := mercatorEdge(srs)
		if err != nil {
			return geom.Extent{}, err
		}
		return geom.Extent{-e, -e, e, e}, nil
	case BoundsGeographicCorner:
		x, y, err := srs.FromGeographic(-180, -90)
		if err != nil {
			return geom.Extent{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return geom.Extent{x, y, -x, -y}, nil
	}
	return p.Bounds.Extent(), nil
}

type presetRegistry struct {
	presets *orderedmap.OrderedMap[string, Preset]
	aliases map[string]string
}

func newPresetRegistry(fsys fs.FS, dir string) (*presetRegistry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	r := &presetRegistry{presets: orderedmap.New[string, Preset](), aliases: make(map[string]string)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, err
		}
		var p Preset
		if err = json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("preset %s: %w", entry.Name(), err)
		}
		name := strings.ToLower(p.Name)
		if _, exists := r.presets.Get(name); exists {
			return nil, fmt.Errorf("preset %s: duplicate name %q", entry.Name(), p.Name)
		}
		r.presets.Set(name, p)
		for _, alias := range p.Aliases {
			r.aliases[strings.ToLower(alias)] = name
		}
	}
	return r, nil
}

func (r *presetRegistry) lookup(name string) (Preset, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := r.aliases[key]; ok {
		key = alias
	}
	return r.presets.Get(key)
}

// Presets returns the names of the well-known schemes.
func Presets() []string {
	r, err := loadPresets()
	if err != nil {
		return nil
	}
	presets := mapslicehelp.OrderedMapValues(r.presets)
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return names
}

// AllPresets returns the well-known scheme definitions in name order.
func AllPresets() []Preset {
	r, err := loadPresets()
	if err != nil {
		return nil
	}
	return mapslicehelp.OrderedMapValues(r.presets)
}

// LookupPreset finds a well-known scheme definition by name or alias, ignoring case.
func LookupPreset(name string) (Preset, bool) {
	r, err := loadPresets()
	if err != nil {
		return Preset{}, false
	}
	return r.lookup(name)
}

// FromWellKnownName creates one of the well-known schemes. Other names are treated as
// reference identifiers and get that reference's default bounds.
func FromWellKnownName(name, vdatumID string) (*Scheme, error) {
	r, err := loadPresets()
	if err != nil {
		return nil, fmt.Errorf("%w: loading presets: %w", ErrConfiguration, err)
	}
	p, ok := r.lookup(name)
	if !ok {
		return FromSpatialReferenceID(name, vdatumID, 0, 0)
	}
	srs, err := resolve(p.SRS, vdatumID)
	if err != nil {
		return nil, err
	}
	bounds, err := p.bounds(srs)
	if err != nil {
		return nil, err
	}
	s, err := newScheme(srs, bounds, p.TilesWide, p.TilesHigh)
	if err != nil {
		return nil, err
	}
	s.wellKnownName = p.Name
	return s, nil
}

// globalGeodetic and sphericalMercator are the two schemes whose levels are treated as
// aligned when computing equivalent levels.
var (
	globalGeodetic = sync.OnceValues(func() (*Scheme, error) {
		srs, err := resolve("wgs84", "")
		if err != nil {
			return nil, err
		}
		return newScheme(srs, geom.Extent{-180, -90, 180, 90}, 2, 1)
	})
	sphericalMercator = sync.OnceValues(func() (*Scheme, error) {
		srs, err := resolve("spherical-mercator", "")
		if err != nil {
			return nil, err
		}
		e, err := mercatorEdge(srs)
		if err != nil {
			return nil, err
		}
		return newScheme(srs, geom.Extent{-e, -e, e, e}, 1, 1)
	})
)
