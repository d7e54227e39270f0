// Package tms20 reads OGC Tile Matrix Set (v2.0) definitions, so that quadtree tile
// matrix sets can be used as tiling schemes.
// See https://www.ogc.org/standard/tms/
package tms20

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/perimeterx/marshmallow"
)

// ErrNotQuadTree is returned for tile matrix sets whose levels are not a quadtree.
var ErrNotQuadTree = errors.New("tile matrix set is not a quadtree")

type TMID = int

var (
	//go:embed tilematrixsets/*.json
	embeddedTileMatrixSetsJSONFS embed.FS
	embeddedTileMatrixSetsCache  sync.Map
)

// EmbeddedTileMatrixSets lists the ids of the embedded tile matrix sets.
func EmbeddedTileMatrixSets() []string {
	entries, err := embeddedTileMatrixSetsJSONFS.ReadDir("tilematrixsets")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return ids
}

func LoadEmbeddedTileMatrixSet(id string) (TileMatrixSet, error) {
	if cached, ok := embeddedTileMatrixSetsCache.Load(id); ok {
		return *cached.(*TileMatrixSet), nil
	}
	var tms TileMatrixSet
	tmsJSON, err := embeddedTileMatrixSetsJSONFS.ReadFile("tilematrixsets/" + id + ".json")
	if err != nil {
		return tms, fmt.Errorf("unknown tile matrix set %q: %w", id, err)
	}
	if err = json.Unmarshal(tmsJSON, &tms); err != nil {
		return tms, fmt.Errorf("tile matrix set %q: %w", id, err)
	}
	embeddedTileMatrixSetsCache.Store(id, &tms)
	return tms, nil
}

func LoadJSONTileMatrixSet(path string) (TileMatrixSet, error) {
	var tms TileMatrixSet
	tmsJSON, err := os.ReadFile(path)
	if err != nil {
		return tms, err
	}
	err = json.Unmarshal(tmsJSON, &tms)
	return tms, err
}

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier. Implementation of 'identifier'
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitnil,min=1" json:"orderedAxes"`
	// Coordinate Reference System (CRS)
	CRS CRS `validate:"required" json:"-"`
	// Describes scale levels and its tile matrices
	TileMatrices map[TMID]TileMatrix `validate:"required,min=1" json:"-"`
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	err := defaults.Set(tms)
	if err != nil {
		return err
	}

	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return fmt.Errorf(`missing key "crs"`)
	}
	if tms.CRS, err = unmarshalCRS(rawCrs); err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return fmt.Errorf(`missing key "tileMatrices"`)
	}
	if tms.TileMatrices, err = unmarshalTileMatrices(rawTileMatrices); err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tms)
}

func unmarshalTileMatrices(rawTileMatrices interface{}) (map[TMID]TileMatrix, error) {
	rawList, ok := rawTileMatrices.([]interface{})
	if !ok {
		return nil, fmt.Errorf(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[TMID]TileMatrix, len(rawList))
	for _, raw := range rawList {
		rawMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf(`"tileMatrices" should be objects`)
		}
		var tm TileMatrix
		if err := tm.UnmarshalJSONFromMap(rawMap); err != nil {
			return nil, err
		}
		tmID, err := strconv.Atoi(tm.ID)
		if err != nil {
			return nil, fmt.Errorf("only integer-like ids are supported for tile matrices: %w", err)
		}
		tileMatrices[tmID] = tm
	}
	return tileMatrices, nil
}

// unmarshalCRS tries the URI and WKT forms of a CRS (oneOf)
func unmarshalCRS(rawCrs interface{}) (CRS, error) {
	var rawCrsMap map[string]interface{}
	if rawCrsString, ok := rawCrs.(string); ok {
		rawCrsMap = map[string]interface{}{"uri": rawCrsString}
	} else if rawCrsMap, ok = rawCrs.(map[string]interface{}); !ok {
		return nil, fmt.Errorf(`wrong type key "crs": %T`, rawCrs)
	}

	var uriCrs URICRS
	uriErr := uriCrs.UnmarshalJSONFromMap(rawCrsMap)
	if uriErr == nil {
		return &uriCrs, nil
	}
	var wktCrs WKTCRS
	wktErr := wktCrs.UnmarshalJSONFromMap(rawCrsMap)
	if wktErr == nil {
		return &wktCrs, nil
	}
	return nil, fmt.Errorf(`could not unmarshal crs into any CRS type: %w`, errors.Join(uriErr, wktErr))
}

type CRS interface {
	Description() string
	AuthorityName() string
	AuthorityCode() string
}

var (
	crsURIRegexURL = regexp.MustCompile("https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$")
	crsURIRegexURN = regexp.MustCompile("^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$")
)

type URICRS struct {
	description string
	// Reference to one coordinate reference system (CRS)
	uri           string `validate:"required,uri"`
	authorityName string `validate:"required"`
	authorityCode string `validate:"required"`
}

func (crs *URICRS) UnmarshalJSONFromMap(dataMap map[string]interface{}) error {
	var err error
	if crs.description, err = optionalString(dataMap, "description"); err != nil {
		return err
	}
	rawURI, ok := dataMap["uri"]
	if !ok {
		return fmt.Errorf(`uri property not found`)
	}
	if crs.uri, ok = rawURI.(string); !ok {
		return fmt.Errorf(`uri property is not a string but a %T`, rawURI)
	}

	uriParts := crsURIRegexURL.FindStringSubmatch(crs.uri)
	if uriParts == nil {
		uriParts = crsURIRegexURN.FindStringSubmatch(crs.uri)
	}
	if uriParts == nil {
		return fmt.Errorf(`could not parse crs uri "%v"`, crs.uri)
	}
	crs.authorityName = uriParts[1]
	crs.authorityCode = uriParts[2]

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(crs)
}

func (crs *URICRS) Description() string   { return crs.description }
func (crs *URICRS) AuthorityName() string { return crs.authorityName }
func (crs *URICRS) AuthorityCode() string { return crs.authorityCode }

type WKTCRS struct {
	description string
	// The JSON encoding of a WKT 2.0 CRS (PROJJSON); only its id is used
	wkt ProjJSON
}

type ProjJSON struct {
	ID ProjJSONID `validate:"required" json:"id"`
}

type ProjJSONID struct {
	AuthorityName string `validate:"required" json:"authority"`
	AuthorityCode any    `validate:"required" json:"code"`
}

func (crs *WKTCRS) UnmarshalJSONFromMap(dataMap map[string]interface{}) error {
	var err error
	if crs.description, err = optionalString(dataMap, "description"); err != nil {
		return err
	}
	rawWKT, ok := dataMap["wkt"]
	if !ok {
		return fmt.Errorf(`wkt property not found`)
	}
	wktMap, ok := rawWKT.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`wkt property is not an object but a %T`, rawWKT)
	}
	if _, err = marshmallow.UnmarshalFromJSONMap(wktMap, &crs.wkt); err != nil {
		return fmt.Errorf(`could not parse wkt as PROJJSON "%v": %w`, wktMap, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(crs)
}

func (crs *WKTCRS) Description() string   { return crs.description }
func (crs *WKTCRS) AuthorityName() string { return crs.wkt.ID.AuthorityName }

func (crs *WKTCRS) AuthorityCode() string {
	switch code := crs.wkt.ID.AuthorityCode.(type) {
	case float64:
		return strconv.FormatFloat(code, 'f', -1, 64)
	case string:
		return code
	}
	return fmt.Sprint(crs.wkt.ID.AuthorityCode)
}

func optionalString(dataMap map[string]interface{}, key string) (string, error) {
	raw, ok := dataMap[key]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf(`%s property is not a string but a %T`, key, raw)
	}
	return s, nil
}

// A 2D Point in the CRS indicated elsewhere
type TwoDPoint [2]float64

// A tile matrix, usually corresponding to a particular zoom level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier selecting one of the scales defined in the TileMatrixSet and representing the scaleDenominator the tile.
	ID string `validate:"required" json:"id"`
	// Scale denominator of this tile matrix
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	// Cell size of this tile matrix
	CellSize float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner of the tile matrix (_topLeft_ or _bottomLeft_) used as the origin for numbering tile rows and columns.
	CornerOfOrigin CornerOfOrigin `default:"topLeft" validate:"oneof=topLeft bottomLeft" json:"cornerOfOrigin,omitempty"`
	// Position in CRS coordinates of the corner of origin, in the order of the tile matrix set's orderedAxes.
	PointOfOrigin TwoDPoint `validate:"required" json:"pointOfOrigin"`
	// Width of each tile of this tile matrix in pixels
	TileWidth uint `validate:"required,min=1" json:"tileWidth"`
	// Height of each tile of this tile matrix in pixels
	TileHeight uint `validate:"required,min=1" json:"tileHeight"`
	// Width of the matrix (number of tiles in width)
	MatrixWidth uint `validate:"required,min=1" json:"matrixWidth"`
	// Height of the matrix (number of tiles in height)
	MatrixHeight uint `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSON(data []byte) error {
	return UnmarshalJSONMapUsingUnmarshalJSONFromMap(tm, data)
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data interface{}) error {
	err := defaults.Set(tm)
	if err != nil {
		return err
	}
	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf(`data is not a map but a %T`, data)
	}
	if _, err = marshmallow.UnmarshalFromJSONMap(dataMap, tm, marshmallow.WithExcludeKnownFieldsFromMap(true)); err != nil {
		return err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(tm)
}

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

func (c *CornerOfOrigin) UnmarshalJSON(data []byte) error {
	return UnmarshalJSONMapUsingUnmarshalJSONFromMap(c, data)
}

func (c *CornerOfOrigin) UnmarshalJSONFromMap(data interface{}) error {
	dataString, ok := data.(string)
	if !ok {
		return fmt.Errorf(`CornerOfOrigin data is not a string but a %T`, data)
	}
	switch dataString {
	case "":
		fallthrough
	case string(TopLeft):
		*c = TopLeft
	case string(BottomLeft):
		*c = BottomLeft
	default:
		return fmt.Errorf(`unknown CornerOfOrigin: %v`, data)
	}
	return nil
}

// SRSID maps the CRS of the tile matrix set to a spatial reference identifier.
func (tms *TileMatrixSet) SRSID() (string, error) {
	if tms.CRS == nil {
		return "", fmt.Errorf("tile matrix set %q has no crs", tms.ID)
	}
	name, code := strings.ToUpper(tms.CRS.AuthorityName()), tms.CRS.AuthorityCode()
	switch {
	case name == "OGC" && strings.EqualFold(code, "CRS84"):
		return "crs84", nil
	case name == "EPSG":
		if _, err := strconv.ParseUint(code, 10, 64); err != nil {
			return "", fmt.Errorf(`could not parse authority code "%v": %w`, code, err)
		}
		return "epsg:" + code, nil
	}
	return "", fmt.Errorf("unsupported crs authority %s:%s", name, code)
}

// TMIDs returns the tile matrix ids in ascending order.
func (tms *TileMatrixSet) TMIDs() []TMID {
	ids := make([]TMID, 0, len(tms.TileMatrices))
	for id := range tms.TileMatrices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IsQuadTree checks that tile matrices are numbered from 0 without gaps, share their
// corner of origin, and that each doubles the size of the matrix of the one before and
// halves its cell size.
func (tms *TileMatrixSet) IsQuadTree() error {
	ids := tms.TMIDs()
	if len(ids) == 0 {
		return fmt.Errorf("%w: no tile matrices", ErrNotQuadTree)
	}
	for i, id := range ids {
		if id != i {
			return fmt.Errorf("%w: expected tile matrix %d, got %d", ErrNotQuadTree, i, id)
		}
		if i == 0 {
			continue
		}
		prev, tm := tms.TileMatrices[i-1], tms.TileMatrices[i]
		switch {
		case tm.MatrixWidth != 2*prev.MatrixWidth || tm.MatrixHeight != 2*prev.MatrixHeight:
			return fmt.Errorf("%w: matrix size of %d is not double that of %d", ErrNotQuadTree, i, i-1)
		case tm.TileWidth != prev.TileWidth || tm.TileHeight != prev.TileHeight:
			return fmt.Errorf("%w: tile size of %d differs from %d", ErrNotQuadTree, i, i-1)
		case math.Abs(tm.CellSize*2-prev.CellSize) > 1e-9*prev.CellSize:
			return fmt.Errorf("%w: cell size of %d is not half that of %d", ErrNotQuadTree, i, i-1)
		case tm.CornerOfOrigin != prev.CornerOfOrigin || tm.PointOfOrigin != prev.PointOfOrigin:
			return fmt.Errorf("%w: origin of %d differs from %d", ErrNotQuadTree, i, i-1)
		}
	}
	return nil
}

// latitudeFirst reports whether points are given as (lat, lon) or (northing, easting).
func (tms *TileMatrixSet) latitudeFirst() bool {
	if len(tms.OrderedAxes) == 0 {
		return false
	}
	switch strings.ToUpper(tms.OrderedAxes[0]) {
	case "LAT", "LATITUDE", "N", "NORTHING":
		return true
	}
	return false
}

// MatrixBoundingBox returns the corners of the area covered by a tile matrix, as (x, y).
func (tms *TileMatrixSet) MatrixBoundingBox(tmID TMID) (bottomLeft, topRight geom.Point, err error) {
	tm, ok := tms.TileMatrices[tmID]
	if !ok {
		return bottomLeft, topRight, fmt.Errorf("tile matrix %d does not exist in %s", tmID, tms.ID)
	}
	x, y := tm.PointOfOrigin[0], tm.PointOfOrigin[1]
	if tms.latitudeFirst() {
		x, y = y, x
	}
	width := float64(tm.MatrixWidth*tm.TileWidth) * tm.CellSize
	height := float64(tm.MatrixHeight*tm.TileHeight) * tm.CellSize
	switch tm.CornerOfOrigin {
	case BottomLeft:
		return geom.Point{x, y}, geom.Point{x + width, y + height}, nil
	default:
		return geom.Point{x, y - height}, geom.Point{x + width, y}, nil
	}
}

// UnmarshalJSONMapUsingUnmarshalJSONFromMap decodes data generically and hands the
// result to the target's UnmarshalJSONFromMap.
func UnmarshalJSONMapUsingUnmarshalJSONFromMap(target marshmallow.UnmarshalerFromJSONMap, data []byte) error {
	var dataAny interface{}
	err := json.Unmarshal(data, &dataAny)
	if err != nil {
		return err
	}
	return target.UnmarshalJSONFromMap(dataAny)
}
