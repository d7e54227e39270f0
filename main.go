package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	"github.com/go-spatial/geom"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/pdok/pyramid/geomhelp"
	"github.com/pdok/pyramid/georef"
	"github.com/pdok/pyramid/lod"
	"github.com/pdok/pyramid/mapslicehelp"
	"github.com/pdok/pyramid/tiling"
	"github.com/pdok/pyramid/tms20"
)

const SCHEME string = `scheme`
const VDATUM string = `vdatum`
const TILEMATRIXSET string = `tilematrixset`
const OPTIONS string = `options`
const WKTWIDTH string = `wkt-width`
const LEVEL string = `level`
const SRS string = `srs`
const X string = `x`
const Y string = `y`
const COL string = `col`
const ROW string = `row`
const BOUNDS string = `bounds`
const FIRST string = `first`
const MAX string = `max`
const MORPHFACTOR string = `morph-factor`
const RESTRICTPOLAR string = `restrict-polar`

//nolint:funlen
func main() {
	_ = godotenv.Load(".env")

	app := cli.NewApp()
	app.Name = "pyramid"
	app.Usage = "Tile pyramid addressing and LOD ranges"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    SCHEME,
			Aliases: []string{"s"},
			Usage:   "Name of a well-known tiling scheme or a spatial reference. E.g.: global-geodetic, spherical-mercator, epsg:3857",
			Value:   tiling.GlobalGeodetic,
			EnvVars: []string{strcase.ToScreamingSnake(SCHEME)},
		},
		&cli.StringFlag{
			Name:    VDATUM,
			Usage:   "Vertical datum of the tiling scheme. E.g.: egm96",
			EnvVars: []string{strcase.ToScreamingSnake(VDATUM)},
		},
		&cli.StringFlag{
			Name:    TILEMATRIXSET,
			Aliases: []string{"tms"},
			Usage:   "ID of a (built-in) tile matrix set, or the path to a tile matrix set JSON file. Takes precedence over --scheme",
			EnvVars: []string{strcase.ToScreamingSnake(TILEMATRIXSET)},
		},
		&cli.StringFlag{
			Name:    OPTIONS,
			Usage:   `Tiling scheme options as JSON. Takes precedence over --tilematrixset and --scheme. E.g.: {"srs":"epsg:3857","bounds":{"xmin":0,"ymin":0,"xmax":1000,"ymax":1000}}`,
			EnvVars: []string{strcase.ToScreamingSnake(OPTIONS)},
		},
		&cli.UintFlag{
			Name:    WKTWIDTH,
			Usage:   "Truncate printed WKT to this many characters, 0 prints all",
			Value:   0,
			EnvVars: []string{strcase.ToScreamingSnake(WKTWIDTH)},
		},
	}

	levelFlag := &cli.UintFlag{
		Name:     LEVEL,
		Aliases:  []string{"z"},
		Usage:    "Level in the tile pyramid",
		Required: true,
		EnvVars:  []string{strcase.ToScreamingSnake(LEVEL)},
	}

	app.Commands = []*cli.Command{
		{
			Name:   "presets",
			Usage:  "List the well-known tiling schemes",
			Action: listPresets,
		},
		{
			Name:  "key",
			Usage: "Find the tile containing a position",
			Flags: []cli.Flag{
				levelFlag,
				&cli.Float64Flag{Name: X, Usage: "X or longitude", Required: true},
				&cli.Float64Flag{Name: Y, Usage: "Y or latitude", Required: true},
				&cli.StringFlag{
					Name:    SRS,
					Usage:   "Spatial reference of the position, defaults to the scheme's",
					EnvVars: []string{strcase.ToScreamingSnake(SRS)},
				},
			},
			Action: tileKey,
		},
		{
			Name:  "extent",
			Usage: "Print the extent of a tile",
			Flags: []cli.Flag{
				levelFlag,
				&cli.UintFlag{Name: COL, Usage: "Column, counted from the west", Required: true},
				&cli.UintFlag{Name: ROW, Usage: "Row, counted from the north", Required: true},
			},
			Action: tileExtent,
		},
		{
			Name:  "intersect",
			Usage: "List the tiles at a level that intersect an extent",
			Flags: []cli.Flag{
				levelFlag,
				&cli.StringFlag{
					Name:     BOUNDS,
					Aliases:  []string{"b"},
					Usage:    "Extent as JSON array [xmin,ymin,xmax,ymax]. A geographic extent with xmin > xmax crosses the antimeridian",
					Required: true,
					EnvVars:  []string{strcase.ToScreamingSnake(BOUNDS)},
				},
				&cli.StringFlag{
					Name:    SRS,
					Usage:   "Spatial reference of the extent, defaults to the scheme's",
					EnvVars: []string{strcase.ToScreamingSnake(SRS)},
				},
			},
			Action: intersect,
		},
		{
			Name:  "ranges",
			Usage: "Print the visibility and morph ranges per level",
			Flags: []cli.Flag{
				&cli.UintFlag{Name: FIRST, Usage: "First level", Value: 0, EnvVars: []string{strcase.ToScreamingSnake(FIRST)}},
				&cli.UintFlag{Name: MAX, Usage: "Max level", Value: 19, EnvVars: []string{strcase.ToScreamingSnake(MAX)}},
				&cli.Float64Flag{
					Name:    MORPHFACTOR,
					Usage:   "Scale factor applied to all ranges",
					Value:   1,
					EnvVars: []string{strcase.ToScreamingSnake(MORPHFACTOR)},
				},
				&cli.BoolFlag{
					Name:    RESTRICTPOLAR,
					Usage:   "Exclude thin tiles near the poles of geographic schemes",
					EnvVars: []string{strcase.ToScreamingSnake(RESTRICTPOLAR)},
				},
			},
			Action: ranges,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func schemeFromFlags(c *cli.Context) (*tiling.Scheme, error) {
	switch {
	case c.IsSet(OPTIONS):
		var options tiling.Options
		if err := json.Unmarshal([]byte(c.String(OPTIONS)), &options); err != nil {
			return nil, err
		}
		return tiling.FromOptions(options)
	case c.IsSet(TILEMATRIXSET):
		tileMatrixSet, err := loadTileMatrixSet(c.String(TILEMATRIXSET))
		if err != nil {
			return nil, err
		}
		return tiling.FromTileMatrixSet(tileMatrixSet)
	}
	return tiling.FromWellKnownName(c.String(SCHEME), c.String(VDATUM))
}

func loadTileMatrixSet(idOrPath string) (tms20.TileMatrixSet, error) {
	if strings.HasSuffix(idOrPath, ".json") {
		return tms20.LoadJSONTileMatrixSet(idOrPath)
	}
	return tms20.LoadEmbeddedTileMatrixSet(idOrPath)
}

// srsFromFlags resolves --srs, falling back to the scheme's reference.
func srsFromFlags(c *cli.Context, scheme *tiling.Scheme) (*georef.SRS, error) {
	if !c.IsSet(SRS) {
		return scheme.SRS(), nil
	}
	return georef.Resolve(c.String(SRS), "")
}

func listPresets(*cli.Context) error {
	for _, p := range tiling.AllPresets() {
		s, err := tiling.FromWellKnownName(p.Name, "")
		if err != nil {
			return err
		}
		wide, high := s.RootTiles()
		fmt.Printf("%-20s %-10s %dx%d %s\n", p.Name, s.SRS(), wide, high, strings.Join(p.Aliases, ","))
	}
	return nil
}

func tileKey(c *cli.Context) error {
	scheme, err := schemeFromFlags(c)
	if err != nil {
		return err
	}
	srs, err := srsFromFlags(c, scheme)
	if err != nil {
		return err
	}
	key := scheme.CreateTileKeyForPoint(georef.NewPoint(srs, c.Float64(X), c.Float64(Y)), c.Uint(LEVEL))
	if !key.Valid() {
		return fmt.Errorf("no tile at level %d for (%v, %v) in %v", c.Uint(LEVEL), c.Float64(X), c.Float64(Y), scheme)
	}

	var ancestors []string
	for k := key; k.Valid(); k = k.Parent() {
		ancestors = append(ancestors, k.String())
	}
	fmt.Printf("key:      %v\n", key)
	fmt.Printf("quadkey:  %s\n", key.QuadKey())
	if z, ok := key.MortonCode(); ok {
		fmt.Printf("morton:   %d\n", z)
	}
	fmt.Printf("path:     %s\n", strings.Join(mapslicehelp.ReverseClone(ancestors), " > "))
	printExtent(c, key.Extent())
	return nil
}

func tileExtent(c *cli.Context) error {
	scheme, err := schemeFromFlags(c)
	if err != nil {
		return err
	}
	level := c.Uint(LEVEL)
	wide, high := scheme.NumTiles(level)
	if c.Uint(COL) >= wide || c.Uint(ROW) >= high {
		return fmt.Errorf("tile %d/%d/%d is outside the %dx%d grid of %v", level, c.Uint(COL), c.Uint(ROW), wide, high, scheme)
	}
	key := tiling.NewTileKey(level, c.Uint(COL), c.Uint(ROW), scheme)
	fmt.Printf("key:      %v\n", key)
	printExtent(c, key.Extent())
	return nil
}

func printExtent(c *cli.Context, extent georef.Extent) {
	polygon := extent.Polygon()
	fmt.Printf("extent:   %v\n", extent)
	fmt.Printf("wkt:      %s\n", geomhelp.WktMustEncode(polygon, c.Uint(WKTWIDTH)))
	fmt.Printf("area:     %v\n", geomhelp.PolygonArea(polygon))
	fmt.Printf("size:     %.1fm x %.1fm\n", extent.WidthMeters(), extent.HeightMeters())
	if geographic := extent.Transform(extent.SRS().Geographic()); geographic.Valid() {
		fmt.Printf("lat/long: %v\n", geographic)
	}
}

func intersect(c *cli.Context) error {
	scheme, err := schemeFromFlags(c)
	if err != nil {
		return err
	}
	srs, err := srsFromFlags(c, scheme)
	if err != nil {
		return err
	}
	var bounds geom.Extent
	if err = json.Unmarshal([]byte(c.String(BOUNDS)), &bounds); err != nil {
		return fmt.Errorf("bounds should be a JSON array of 4 numbers: %w", err)
	}
	extent := georef.NewExtentFromBounds(srs, bounds)
	if !extent.Valid() {
		return fmt.Errorf("invalid extent %v", bounds)
	}

	keys := scheme.IntersectingTilesForExtent(extent, c.Uint(LEVEL))
	log.Printf("%d tiles at level %d intersect %v", len(keys), c.Uint(LEVEL), extent)
	polygons := make([]geom.Polygon, 0, len(keys))
	for _, key := range keys {
		fmt.Println(key)
		polygons = append(polygons, key.Extent().Polygon())
	}
	if c.Uint(WKTWIDTH) > 0 {
		fmt.Print(geomhelp.WktMustEncodeSlice(polygons, c.Uint(WKTWIDTH)))
	}
	return nil
}

func ranges(c *cli.Context) error {
	scheme, err := schemeFromFlags(c)
	if err != nil {
		return err
	}
	var table lod.RangeTable
	err = table.Initialize(c.Uint(FIRST), c.Uint(MAX), scheme, c.Float64(MORPHFACTOR), c.Bool(RESTRICTPOLAR))
	if err != nil {
		return err
	}
	levels := make([]lod.Level, 0, table.NumLevels())
	for level := table.FirstLevel(); level <= c.Uint(MAX); level++ {
		levels = append(levels, table.Get(level))
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(levels)
}
