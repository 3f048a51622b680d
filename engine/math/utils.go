package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// AlignUp rounds operand up to the next multiple of granularity.
// granularity must be a power of two.
func AlignUp[T constraints.Unsigned](operand, granularity T) T {
	if granularity == 0 {
		return operand
	}
	return (operand + (granularity - 1)) &^ (granularity - 1)
}

// DivCeil returns ceil(n / d) for d > 0.
func DivCeil[T constraints.Unsigned](n, d T) T {
	return (n + d - 1) / d
}
