package mathhelp

import (
	"math"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Pow2 returns 2^n, and false when that does not fit in a uint.
func Pow2(n uint) (uint, bool) {
	if n >= bits.UintSize {
		return 0, false
	}
	return 1 << n, true
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Equivalent reports whether a and b differ by at most epsilon.
func Equivalent(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// MulOverflows reports whether a*b does not fit in a uint.
func MulOverflows(a, b uint) bool {
	hi, _ := bits.Mul(a, b)
	return hi != 0
}

func IsFinite(fs ...float64) bool {
	for _, f := range fs {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
