package tiling

import (
	"testing"

	"github.com/pdok/pyramid/georef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileKey(t *testing.T) {
	gg := mustScheme(t, GlobalGeodetic)
	key := NewTileKey(3, 5, 2, gg)
	require.True(t, key.Valid())
	assert.Equal(t, "3/5/2", key.String())
	assert.Equal(t, "INVALID", InvalidTileKey.String())
	assert.False(t, NewTileKey(0, 0, 0, nil).Valid())

	parent := key.Parent()
	assert.Equal(t, "2/2/1", parent.String())
	assert.True(t, parent.Child(3).Equal(NewTileKey(3, 5, 3, gg)))
	for q := uint(0); q < 4; q++ {
		assert.True(t, key.Child(q).Parent().Equal(key), "quadrant %d", q)
	}
	assert.False(t, key.Child(4).Valid())
	assert.False(t, NewTileKey(0, 1, 0, gg).Parent().Valid())

	assert.Equal(t, "121", key.QuadKey())
	assert.Equal(t, "", NewTileKey(0, 1, 0, gg).QuadKey())

	z, ok := key.MortonCode()
	require.True(t, ok)
	assert.Equal(t, uint64(25), z)
	assert.True(t, FromMortonCode(3, z, gg).Equal(key))

	tile := key.SlippyTile()
	assert.Equal(t, []uint{3, 5, 2}, []uint{tile.Z, tile.X, tile.Y})
}

func TestTileKeyEqual(t *testing.T) {
	gg := mustScheme(t, GlobalGeodetic)
	sm := mustScheme(t, SphericalMercator)
	gg96, err := FromWellKnownName(GlobalGeodetic, "egm96")
	require.NoError(t, err)
	custom, err := FromSpatialReferenceID("wgs84", "", 0, 0)
	require.NoError(t, err)

	key := NewTileKey(2, 1, 1, gg)
	assert.True(t, key.Equal(NewTileKey(2, 1, 1, custom)))
	assert.True(t, key.Equal(NewTileKey(2, 1, 1, gg96)))
	assert.False(t, key.Equal(NewTileKey(2, 1, 1, sm)))
	assert.False(t, key.Equal(NewTileKey(2, 1, 0, gg)))
	assert.False(t, key.Equal(InvalidTileKey))
	assert.True(t, InvalidTileKey.Equal(TileKey{}))
}

func TestCreateTileKey(t *testing.T) {
	gg := mustScheme(t, GlobalGeodetic)

	t.Run("contains the position", func(t *testing.T) {
		points := [][2]float64{{0, 0}, {-180, -90}, {179.9, 89.9}, {4.9, 52.3}, {-73.9, 40.7}, {151.2, -33.9}}
		for level := uint(0); level < 12; level++ {
			for _, p := range points {
				key := gg.CreateTileKey(p[0], p[1], level)
				require.True(t, key.Valid(), "%v at level %d", p, level)
				assert.Equal(t, level, key.Level())
				assert.True(t, key.Extent().Contains(p[0], p[1]), "%v at level %d: %v", p, level, key)
			}
		}
	})

	t.Run("edges", func(t *testing.T) {
		assert.Equal(t, "0/1/0", gg.CreateTileKey(180, 90, 0).String())
		assert.Equal(t, "0/0/0", gg.CreateTileKey(-180, 90, 0).String())
		assert.Equal(t, "1/3/1", gg.CreateTileKey(180, -90, 1).String())
	})

	t.Run("outside or unaddressable", func(t *testing.T) {
		assert.False(t, gg.CreateTileKey(181, 0, 1).Valid())
		assert.False(t, gg.CreateTileKey(0, -91, 1).Valid())
		assert.True(t, gg.CreateTileKey(0, 0, 62).Valid())
		assert.False(t, gg.CreateTileKey(0, 0, 63).Valid())
		assert.False(t, gg.CreateTileKey(0, 0, 64).Valid())
		assert.False(t, (*Scheme)(nil).CreateTileKey(0, 0, 0).Valid())
	})

	t.Run("for point", func(t *testing.T) {
		sm := mustScheme(t, SphericalMercator)
		wgs84 := georef.MustResolve("wgs84", "")
		key := sm.CreateTileKeyForPoint(georef.NewPoint(wgs84, 10, 10), 1)
		assert.Equal(t, "1/1/0", key.String())
		assert.False(t, sm.CreateTileKeyForPoint(georef.NewPoint(wgs84, 0, 90), 1).Valid())
		key = gg.CreateTileKeyForPoint(georef.NewPoint(wgs84, -10, -10), 1)
		assert.Equal(t, "1/1/1", key.String())
	})
}
