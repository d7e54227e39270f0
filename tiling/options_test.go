package tiling

import (
	"encoding/json"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsRoundTrip(t *testing.T) {
	gg96, err := FromWellKnownName("geodetic", "egm96")
	require.NoError(t, err)
	custom, err := FromBounds("spherical-mercator", "", geom.Extent{0, 0, 10, 10}, 2, 2)
	require.NoError(t, err)
	derived, err := FromSpatialReferenceID("plate-carree", "egm2008", 0, 0)
	require.NoError(t, err)

	for _, s := range []*Scheme{gg96, custom, derived, mustScheme(t, SphericalMercator)} {
		t.Run(s.String(), func(t *testing.T) {
			o := s.Options()
			data, err := json.Marshal(o)
			require.NoError(t, err)
			var decoded Options
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, o, decoded)

			again, err := FromOptions(decoded)
			require.NoError(t, err)
			assert.True(t, again.IsFullyEquivalentTo(s))
			assert.Equal(t, s.WellKnownName(), again.WellKnownName())
		})
	}

	assert.Equal(t, Options{Name: GlobalGeodetic, VDatum: "egm96"}, gg96.Options())
	assert.Equal(t, Options{}, (*Scheme)(nil).Options())
}

func TestOptionsUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    Options
		wantErr bool
	}{
		{
			name: "name",
			json: `{"name": "global-geodetic", "vdatum": "egm96"}`,
			want: Options{Name: GlobalGeodetic, VDatum: "egm96"},
		},
		{
			name: "legacy profile",
			json: `{"profile": "global-geodetic", "vsrs": "egm96"}`,
			want: Options{Name: GlobalGeodetic, VDatum: "egm96"},
		},
		{
			name: "legacy tile counts",
			json: `{"srs": "spherical-mercator", "bounds": {"xmin": 0, "ymin": 0, "xmax": 10, "ymax": 10},
				"num_tiles_wide_at_lod_0": 2, "num_tiles_high_at_lod_0": 3}`,
			want: Options{SRS: "spherical-mercator", Bounds: &Bounds{XMax: 10, YMax: 10}, TilesWide: 2, TilesHigh: 3},
		},
		{
			name: "unknown keys are ignored",
			json: `{"srs": "wgs84", "comment": "whatever"}`,
			want: Options{SRS: "wgs84"},
		},
		{name: "no name nor reference", json: `{"vdatum": "egm96"}`, wantErr: true},
		{name: "inverted bounds", json: `{"srs": "wgs84", "bounds": {"xmin": 10, "ymin": 0, "xmax": 0, "ymax": 10}}`, wantErr: true},
		{name: "profile is not a string", json: `{"profile": 3}`, wantErr: true},
		{name: "fractional tile count", json: `{"srs": "wgs84", "num_tiles_wide_at_lod_0": 1.5}`, wantErr: true},
		{name: "negative tile count", json: `{"srs": "wgs84", "num_tiles_high_at_lod_0": -1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Options
			err := json.Unmarshal([]byte(tt.json), &o)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, o)
		})
	}
}

func TestFromOptions(t *testing.T) {
	gg := mustScheme(t, GlobalGeodetic)

	s, err := FromOptions(Options{SRS: "wgs84"})
	require.NoError(t, err)
	assert.True(t, s.IsFullyEquivalentTo(gg))

	s, err = FromOptions(Options{SRS: "wgs84", TilesWide: 4})
	require.NoError(t, err)
	assert.True(t, s.IsFullyEquivalentTo(gg))

	s, err = FromOptions(Options{Name: "global-geodetic", SRS: "spherical-mercator"})
	require.NoError(t, err)
	assert.Equal(t, GlobalGeodetic, s.WellKnownName())

	s, err = FromOptions(Options{SRS: "epsg:32631", Bounds: &Bounds{XMin: 166021, XMax: 833979, YMax: 9329005}, TilesWide: 1, TilesHigh: 8})
	require.NoError(t, err)
	wide, high := s.RootTiles()
	assert.Equal(t, []uint{1, 8}, []uint{wide, high})

	_, err = FromOptions(Options{})
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = FromOptions(Options{SRS: "epsg:32631"})
	require.ErrorIs(t, err, ErrConfiguration)
}
