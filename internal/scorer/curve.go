package scorer

import (
	"math"

	"github.com/sells-group/lease-match/internal/region"
)

// decay is 100 at or below full and falls linearly to 0 at zero.
func decay(x, full, zero float64) float64 {
	if x <= full {
		return 100
	}
	if x >= zero || zero <= full {
		return 0
	}
	return 100 * (zero - x) / (zero - full)
}

// rise is 0 at or below zero and climbs linearly to 100 at full.
func rise(x, zero, full float64) float64 {
	if x >= full {
		return 100
	}
	if x <= zero || full <= zero {
		return 0
	}
	return 100 * (x - zero) / (full - zero)
}

// clampScore bounds a factor score to [0, 100] with two decimals.
func clampScore(v float64) float64 {
	return round2(math.Max(0, math.Min(100, v)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func hasCertification(have []string, want string) bool {
	w := region.Fold(want)
	for _, h := range have {
		if region.Fold(h) == w {
			return true
		}
	}
	return false
}
