// Package scorer implements eligibility prefiltering and weighted
// multi-factor scoring of listing/opportunity pairs.
package scorer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/config"
)

// weightTolerance bounds the accepted drift of the weight sum from 1.0.
const weightTolerance = 1e-6

// Weights are the factor weights. They must sum to 1.0.
type Weights struct {
	Location        float64 `json:"location"`
	Space           float64 `json:"space"`
	Building        float64 `json:"building"`
	PricingTimeline float64 `json:"pricing_timeline"`
	Experience      float64 `json:"experience"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Location + w.Space + w.Building + w.PricingTimeline + w.Experience
}

// Thresholds are the score cutoffs for the qualified and competitive flags.
type Thresholds struct {
	Qualify     int `json:"qualify"`
	Competitive int `json:"competitive"`
}

// Rules are the hard eligibility tolerances shared by the prefilter and the
// factor gates.
type Rules struct {
	MinSizeRatio float64
	MaxSizeRatio float64
	RadiusMiles  float64
	DateGrace    time.Duration
}

// Config holds everything the engine needs to score a pair.
type Config struct {
	Weights            Weights
	Thresholds         Thresholds
	Rules              Rules
	DefaultRadiusMiles float64
	DensityRadiusMiles float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Location:        0.35,
			Space:           0.30,
			Building:        0.20,
			PricingTimeline: 0.10,
			Experience:      0.05,
		},
		Thresholds: Thresholds{Qualify: 40, Competitive: 70},
		Rules: Rules{
			MinSizeRatio: 0.5,
			MaxSizeRatio: 3.0,
			RadiusMiles:  50,
			DateGrace:    90 * 24 * time.Hour,
		},
		DefaultRadiusMiles: 25,
		DensityRadiusMiles: 5,
	}
}

// FromConfig maps application configuration onto a scorer Config.
func FromConfig(cfg *config.Config) Config {
	m := cfg.Matching
	return Config{
		Weights: Weights{
			Location:        m.Weights.Location,
			Space:           m.Weights.Space,
			Building:        m.Weights.Building,
			PricingTimeline: m.Weights.PricingTimeline,
			Experience:      m.Weights.Experience,
		},
		Thresholds: Thresholds{Qualify: m.QualifyThreshold, Competitive: m.CompetitiveThreshold},
		Rules: Rules{
			MinSizeRatio: m.Prefilter.MinSizeRatio,
			MaxSizeRatio: m.Prefilter.MaxSizeRatio,
			RadiusMiles:  m.Prefilter.RadiusMiles,
			DateGrace:    m.Prefilter.DateGrace(),
		},
		DefaultRadiusMiles: m.DefaultRadiusMiles,
		DensityRadiusMiles: cfg.Density.RadiusMiles,
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	weights := []struct {
		name string
		w    float64
	}{
		{"location", c.Weights.Location},
		{"space", c.Weights.Space},
		{"building", c.Weights.Building},
		{"pricing_timeline", c.Weights.PricingTimeline},
		{"experience", c.Weights.Experience},
	}
	for _, w := range weights {
		if w.w < 0 || w.w > 1 {
			errs = append(errs, fmt.Sprintf("%s weight must be between 0 and 1", w.name))
		}
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.6f", sum))
	}

	if err := c.Thresholds.validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Rules.MinSizeRatio <= 0 || c.Rules.MinSizeRatio > 1 {
		errs = append(errs, "min_size_ratio must be in (0, 1]")
	}
	if c.Rules.MaxSizeRatio < 1 {
		errs = append(errs, "max_size_ratio must be >= 1")
	}
	if c.Rules.RadiusMiles < 0 {
		errs = append(errs, "prefilter radius must be >= 0")
	}
	if c.Rules.DateGrace < 0 {
		errs = append(errs, "date grace must be >= 0")
	}
	if c.DefaultRadiusMiles <= 0 {
		errs = append(errs, "default_radius_miles must be > 0")
	}
	if c.DensityRadiusMiles <= 0 {
		errs = append(errs, "density radius must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (t Thresholds) validate() error {
	if t.Qualify < 0 || t.Competitive > 100 || t.Qualify > t.Competitive {
		return eris.Errorf("thresholds must satisfy 0 <= qualify (%d) <= competitive (%d) <= 100", t.Qualify, t.Competitive)
	}
	return nil
}
