package tiling

import "math"

var (
	mortonMasks = [...]uint64{
		0b0101010101010101010101010101010101010101010101010101010101010101,
		0b0011001100110011001100110011001100110011001100110011001100110011,
		0b0000111100001111000011110000111100001111000011110000111100001111,
		0b0000000011111111000000001111111100000000111111110000000011111111,
		0b0000000000000000111111111111111100000000000000001111111111111111,
		0b0000000000000000000000000000000011111111111111111111111111111111,
	}
	mortonShifts = [...]uint{0, 1, 2, 4, 8, 16}
)

// toZ interleaves x and y into a Z-order code. Only 32 bits of each fit.
func toZ(col, row uint) (z uint64, ok bool) {
	ok = col <= math.MaxUint32 && row <= math.MaxUint32
	x, y := uint64(col)&math.MaxUint32, uint64(row)&math.MaxUint32
	for i := 4; i >= 0; i-- {
		x = (x | (x << mortonShifts[i+1])) & mortonMasks[i]
		y = (y | (y << mortonShifts[i+1])) & mortonMasks[i]
	}
	return x | (y << 1), ok
}

func fromZ(z uint64) (col, row uint) {
	x, y := z, z>>1
	for i := 0; i <= 5; i++ {
		x = (x | (x >> mortonShifts[i])) & mortonMasks[i]
		y = (y | (y >> mortonShifts[i])) & mortonMasks[i]
	}
	return uint(x), uint(y)
}
