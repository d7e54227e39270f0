package tms20

import (
	"encoding/json"
	"path"
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/require"
)

func loadTestOrEmbeddedTileMatrixSet(t *testing.T, id string) TileMatrixSet {
	t.Helper()
	tms, err := LoadEmbeddedTileMatrixSet(id)
	if err == nil {
		return tms
	}
	jsonFilePath, err := filepath.Abs(path.Join("testdata", id+".json"))
	require.NoError(t, err)
	tms, err = LoadJSONTileMatrixSet(jsonFilePath)
	require.NoErrorf(t, err, "LoadJSONTileMatrixSet(%s) error = %v", id, err)
	return tms
}

func TestLoadTileMatrixSet(t *testing.T) {
	tests := []struct {
		id        string
		srsID     string
		levels    int
		quadErr   bool
		authority string
	}{
		{id: "WebMercatorQuad", srsID: "epsg:3857", levels: 25, authority: "EPSG"},
		{id: "WorldCRS84Quad", srsID: "crs84", levels: 18, authority: "OGC"},
		{id: "LatLonWKTQuad", srsID: "epsg:4326", levels: 2, authority: "EPSG"},
		{id: "NotAQuadTree", srsID: "epsg:28992", levels: 3, quadErr: true, authority: "EPSG"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tms := loadTestOrEmbeddedTileMatrixSet(t, tt.id)
			require.Equal(t, tt.id, tms.ID)
			require.Len(t, tms.TileMatrices, tt.levels)
			require.Equal(t, tt.authority, tms.CRS.AuthorityName())

			srsID, err := tms.SRSID()
			require.NoError(t, err)
			require.Equal(t, tt.srsID, srsID)

			err = tms.IsQuadTree()
			if tt.quadErr {
				require.ErrorIs(t, err, ErrNotQuadTree)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadEmbeddedTileMatrixSetUnknown(t *testing.T) {
	_, err := LoadEmbeddedTileMatrixSet("DoesNotExist")
	require.Error(t, err)
	require.ElementsMatch(t, []string{"WebMercatorQuad", "WorldCRS84Quad"}, EmbeddedTileMatrixSets())
}

func TestTileMatrixSet_MatrixBoundingBox(t *testing.T) {
	tests := []struct {
		id             string
		tmID           TMID
		wantBottomLeft geom.Point
		wantTopRight   geom.Point
		wantErr        bool
	}{
		{id: "WorldCRS84Quad", tmID: 0, wantBottomLeft: geom.Point{-180, -90}, wantTopRight: geom.Point{180, 90}},
		{id: "WorldCRS84Quad", tmID: 5, wantBottomLeft: geom.Point{-180, -90}, wantTopRight: geom.Point{180, 90}},
		{id: "LatLonWKTQuad", tmID: 1, wantBottomLeft: geom.Point{-180, -90}, wantTopRight: geom.Point{180, 90}},
		{id: "NotAQuadTree", tmID: 0, wantBottomLeft: geom.Point{-285401.92, 22598.08}, wantTopRight: geom.Point{595401.92, 903401.92}},
		{id: "WorldCRS84Quad", tmID: 99, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tms := loadTestOrEmbeddedTileMatrixSet(t, tt.id)
			bottomLeft, topRight, err := tms.MatrixBoundingBox(tt.tmID)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.InDeltaSlice(t, tt.wantBottomLeft[:], bottomLeft[:], 1e-6)
			require.InDeltaSlice(t, tt.wantTopRight[:], topRight[:], 1e-6)
		})
	}
}

func TestWebMercatorQuadBoundingBox(t *testing.T) {
	tms := loadTestOrEmbeddedTileMatrixSet(t, "WebMercatorQuad")
	bottomLeft, topRight, err := tms.MatrixBoundingBox(0)
	require.NoError(t, err)
	require.InDelta(t, -20037508.3427892, bottomLeft.X(), 1e-6)
	require.InDelta(t, -20037508.3427892, bottomLeft.Y(), 1e-6)
	require.InDelta(t, 20037508.3427892, topRight.X(), 1e-6)
	require.InDelta(t, 20037508.3427892, topRight.Y(), 1e-6)
	require.Equal(t, TopLeft, tms.TileMatrices[0].CornerOfOrigin)
}

func TestCornerOfOrigin(t *testing.T) {
	tms := loadTestOrEmbeddedTileMatrixSet(t, "NotAQuadTree")
	for tmID, tm := range tms.TileMatrices {
		require.Equalf(t, BottomLeft, tm.CornerOfOrigin, "tile matrix %d", tmID)
	}
	webMercator := loadTestOrEmbeddedTileMatrixSet(t, "WebMercatorQuad")
	require.Equal(t, TopLeft, webMercator.TileMatrices[0].CornerOfOrigin)

	tests := []struct {
		data    string
		want    CornerOfOrigin
		wantErr bool
	}{
		{data: `"topLeft"`, want: TopLeft},
		{data: `"bottomLeft"`, want: BottomLeft},
		{data: `""`, want: TopLeft},
		{data: `"bottomRight"`, wantErr: true},
		{data: `3`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			var c CornerOfOrigin
			err := json.Unmarshal([]byte(tt.data), &c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, c)
		})
	}
}

func TestTileMatrixUnmarshalJSON(t *testing.T) {
	var tm TileMatrix
	err := json.Unmarshal([]byte(`{"id":"2","scaleDenominator":1,"cellSize":1,"cornerOfOrigin":"bottomLeft",`+
		`"pointOfOrigin":[0,0],"tileWidth":256,"tileHeight":256,"matrixWidth":4,"matrixHeight":4}`), &tm)
	require.NoError(t, err)
	require.Equal(t, BottomLeft, tm.CornerOfOrigin)
	require.Equal(t, uint(4), tm.MatrixHeight)

	err = json.Unmarshal([]byte(`{"id":"2","scaleDenominator":1,"cellSize":1,"cornerOfOrigin":"middle",`+
		`"pointOfOrigin":[0,0],"tileWidth":256,"tileHeight":256,"matrixWidth":4,"matrixHeight":4}`), &tm)
	require.ErrorContains(t, err, "unknown CornerOfOrigin")
}
