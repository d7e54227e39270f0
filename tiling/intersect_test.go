package tiling

import (
	"math"
	"testing"

	"github.com/pdok/pyramid/georef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyStrings(keys []TileKey) []string {
	s := make([]string, 0, len(keys))
	for _, k := range keys {
		s = append(s, k.String())
	}
	return s
}

func TestIntersectingTilesForExtent(t *testing.T) {
	wgs84 := georef.MustResolve("wgs84", "")
	gg := mustScheme(t, GlobalGeodetic)
	sm := mustScheme(t, SphericalMercator)

	tests := []struct {
		name   string
		scheme *Scheme
		extent georef.Extent
		level  uint
		want   []string
	}{
		{
			name:   "exact tile",
			scheme: gg,
			extent: gg.CalculateExtent(3, 5, 2),
			level:  3,
			want:   []string{"3/5/2"},
		},
		{
			name:   "exact tile one level up",
			scheme: gg,
			extent: gg.CalculateExtent(2, 1, 1),
			level:  3,
			want:   []string{"3/2/2", "3/2/3", "3/3/2", "3/3/3"},
		},
		{
			name:   "antimeridian",
			scheme: gg,
			extent: georef.NewExtent(wgs84, 170, -10, -170, 10),
			level:  2,
			want:   []string{"2/7/1", "2/7/2", "2/0/1", "2/0/2"},
		},
		{
			name:   "antimeridian into mercator",
			scheme: sm,
			extent: georef.NewExtent(wgs84, 170, -10, -170, 10),
			level:  1,
			want:   []string{"1/1/0", "1/1/1", "1/0/0", "1/0/1"},
		},
		{
			name:   "whole world",
			scheme: gg,
			extent: georef.NewExtent(wgs84, -180, -90, 180, 90),
			level:  0,
			want:   []string{"0/0/0", "0/1/0"},
		},
		{
			name:   "invalid extent",
			scheme: gg,
			extent: georef.Extent{},
			level:  0,
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := tt.scheme.IntersectingTilesForExtent(tt.extent, tt.level)
			assert.Equal(t, tt.want, keyStrings(keys))
			for _, k := range keys {
				assert.Same(t, tt.scheme, k.Scheme())
			}
		})
	}
}

func TestIntersectingTiles(t *testing.T) {
	gg := mustScheme(t, GlobalGeodetic)
	sm := mustScheme(t, SphericalMercator)
	custom, err := FromSpatialReferenceID("wgs84", "egm96", 0, 0)
	require.NoError(t, err)

	t.Run("equivalent scheme", func(t *testing.T) {
		key := NewTileKey(4, 3, 7, custom)
		keys := gg.IntersectingTiles(key)
		require.Len(t, keys, 1)
		assert.True(t, keys[0].Equal(key))
	})

	t.Run("mercator root into geodetic", func(t *testing.T) {
		keys := gg.IntersectingTiles(NewTileKey(0, 0, 0, sm))
		assert.Equal(t, []string{"0/0/0", "0/1/0"}, keyStrings(keys))
	})

	t.Run("polar geodetic key into mercator", func(t *testing.T) {
		keys := sm.IntersectingTiles(NewTileKey(1, 0, 0, gg))
		assert.Equal(t, []string{"1/0/0"}, keyStrings(keys))
	})

	t.Run("every result intersects the key", func(t *testing.T) {
		key := NewTileKey(5, 17, 9, gg)
		keys := sm.IntersectingTiles(key)
		require.NotEmpty(t, keys)
		keyExtent := key.Extent()
		for _, k := range keys {
			assert.Equal(t, uint(5), k.Level())
			inGeo := k.Extent().Transform(keyExtent.SRS())
			require.True(t, inGeo.Valid())
			assert.True(t, inGeo.Intersects(keyExtent), "%v does not intersect %v", k, key)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		assert.Nil(t, gg.IntersectingTiles(InvalidTileKey))
	})
}

func TestIntersectingTilesForExtentDeepLevels(t *testing.T) {
	gg := mustScheme(t, GlobalGeodetic)
	sm := mustScheme(t, SphericalMercator)

	assert.Nil(t, sm.IntersectingTilesForExtent(sm.Extent(), 63))
	assert.Nil(t, sm.IntersectingTilesForExtent(sm.Extent(), 64))
	assert.Nil(t, gg.IntersectingTilesForExtent(gg.Extent(), 62))

	origin := gg.CalculateExtent(61, 1<<61, 1<<60)
	require.True(t, origin.Valid())
	assert.Equal(t, []string{"61/2305843009213693952/1152921504606846976"},
		keyStrings(gg.IntersectingTilesForExtent(origin, 61)))
}

func TestSnappedRange(t *testing.T) {
	tests := []struct {
		name      string
		lo, hi    float64
		size      float64
		wantFirst int64
		wantLast  int64
	}{
		{name: "inside one tile", lo: 0.25, hi: 0.75, size: 1, wantFirst: 0, wantLast: 0},
		{name: "on boundaries", lo: 1, hi: 3, size: 1, wantFirst: 1, wantLast: 2},
		{name: "within tolerance", lo: 1 - 1e-9, hi: 3 + 1e-9, size: 1, wantFirst: 1, wantLast: 2},
		{name: "beyond int64", lo: 1e300, hi: 2e300, size: 1, wantFirst: math.MaxInt64, wantLast: math.MaxInt64},
		{name: "below int64", lo: -2e300, hi: -1e300, size: 1, wantFirst: math.MinInt64, wantLast: math.MinInt64},
		{name: "not a number", lo: math.NaN(), hi: math.NaN(), size: 1, wantFirst: 0, wantLast: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := snappedRange(tt.lo, tt.hi, tt.size)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestClampAndTransformExtent(t *testing.T) {
	wgs84 := georef.MustResolve("wgs84", "")
	gg := mustScheme(t, GlobalGeodetic)
	sm := mustScheme(t, SphericalMercator)
	world := georef.NewExtent(wgs84, -180, -90, 180, 90)

	t.Run("whole world", func(t *testing.T) {
		e, clamped := sm.ClampAndTransformExtent(world)
		assert.True(t, e.Equal(sm.Extent()))
		assert.True(t, clamped)

		e, clamped = gg.ClampAndTransformExtent(world)
		assert.True(t, e.Equal(gg.Extent()))
		assert.False(t, clamped)
	})

	t.Run("inside the domain", func(t *testing.T) {
		e, clamped := sm.ClampAndTransformExtent(georef.NewExtent(wgs84, 0, 0, 10, 10))
		require.True(t, e.Valid())
		assert.True(t, clamped)
		assert.InDelta(t, 0, e.XMin(), 1e-6)
		assert.InDelta(t, 1113194.9079327357, e.XMax(), 1e-3)
	})

	t.Run("polar fallback", func(t *testing.T) {
		e, clamped := sm.ClampAndTransformExtent(georef.NewExtent(wgs84, -10, 80, 10, 90))
		require.True(t, e.Valid())
		assert.True(t, clamped)
		assert.InDelta(t, -1113194.9079327357, e.XMin(), 1e-3)
		assert.InDelta(t, sm.Extent().YMax(), e.YMax(), 1e-3)
		assert.True(t, e.SRS().IsHorizontallyEquivalentTo(sm.SRS()))
	})

	t.Run("invalid", func(t *testing.T) {
		e, clamped := sm.ClampAndTransformExtent(georef.Extent{})
		assert.False(t, e.Valid())
		assert.False(t, clamped)
	})
}
