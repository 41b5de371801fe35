package engine

import (
	"math"

	"github.com/nieko-nera/core/internal/domain"
)

// Tolerance policy shared by the checkers. Percentage windows apply to
// numeric and weather comparisons, fixed radii to coordinates and fixed
// second buffers to paces, durations and clock times.
const (
	// approxTolerance and likeTolerance are fractions of the condition value.
	approxTolerance = 0.03
	likeTolerance   = 0.10

	// Location radii are half-widths of a square bounding box in decimal
	// degrees, unprojected. Roughly 60 m, 300 m and 650 m at mid latitudes.
	locationRadiusEqual  = 0.000556
	locationRadiusApprox = 0.002735
	locationRadiusLike   = 0.005926

	// Pace buffers in seconds per kilometre.
	paceBufferEqual  = 1.0
	paceBufferApprox = 20.0
	paceBufferLike   = 60.0

	// Duration and clock-time buffers in seconds. Equality allows two
	// minutes because GPS start-time jitter routinely exceeds one.
	clockBufferEqual  = 120.0
	clockBufferApprox = 600.0
	clockBufferLike   = 1800.0
)

// withinPercent reports whether observed lies inside the window
// [target*(1-pct), target*(1+pct)].
func withinPercent(observed, target, pct float64) bool {
	lo := target * (1 - pct)
	hi := target * (1 + pct)
	if lo > hi {
		lo, hi = hi, lo
	}
	return observed >= lo && observed <= hi
}

// roundedEqual is the canonical numeric equality: both sides rounded to the
// nearest integer.
func roundedEqual(observed, target float64) bool {
	return math.Round(observed) == math.Round(target)
}

func locationRadius(op domain.Operator) (float64, bool) {
	switch op {
	case domain.OperatorEqual:
		return locationRadiusEqual, true
	case domain.OperatorApproximate:
		return locationRadiusApprox, true
	case domain.OperatorLike:
		return locationRadiusLike, true
	default:
		return 0, false
	}
}

func timeBuffer(kind timeKind, op domain.Operator) float64 {
	if kind == timeKindPace {
		switch op {
		case domain.OperatorEqual:
			return paceBufferEqual
		case domain.OperatorApproximate:
			return paceBufferApprox
		default:
			return paceBufferLike
		}
	}
	switch op {
	case domain.OperatorEqual:
		return clockBufferEqual
	case domain.OperatorApproximate:
		return clockBufferApprox
	default:
		return clockBufferLike
	}
}
