package mathhelp

import (
	"math"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPow2(t *testing.T) {
	tests := []struct {
		n      uint
		want   uint
		wantOK bool
	}{
		{n: 0, want: 1, wantOK: true},
		{n: 1, want: 2, wantOK: true},
		{n: 10, want: 1024, wantOK: true},
		{n: bits.UintSize - 1, want: 1 << (bits.UintSize - 1), wantOK: true},
		{n: bits.UintSize, want: 0, wantOK: false},
		{n: 200, want: 0, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := Pow2(tt.n)
		assert.Equal(t, tt.wantOK, ok, "Pow2(%d)", tt.n)
		assert.Equal(t, tt.want, got, "Pow2(%d)", tt.n)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, 0, Clamp(-2, 0, 3))
	assert.Equal(t, 2, Clamp(2, 0, 3))
	assert.Equal(t, uint(7), Clamp(uint(9), 0, 7))
	assert.Equal(t, -90.0, Clamp(-91.5, -90, 90))
}

func TestMulOverflows(t *testing.T) {
	assert.False(t, MulOverflows(2, 1<<(bits.UintSize-2)))
	assert.True(t, MulOverflows(2, 1<<(bits.UintSize-1)))
	assert.False(t, MulOverflows(0, math.MaxUint))
}

func TestEquivalentAndFinite(t *testing.T) {
	assert.True(t, Equivalent(1, 1+1e-9, 1e-6))
	assert.False(t, Equivalent(1, 1.1, 1e-6))
	assert.True(t, IsFinite(1, 2, 3))
	assert.False(t, IsFinite(1, math.NaN()))
	assert.False(t, IsFinite(math.Inf(-1)))
}
