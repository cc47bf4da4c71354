package scorer

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/model"
)

// ErrWeightSum means the factor weights do not sum to 1.0.
var ErrWeightSum = eris.New("scorer: weights must sum to 1.0")

// gradeFloors are the inclusive lower bounds for each grade, best first.
var gradeFloors = []struct {
	min   int
	grade model.Grade
}{
	{90, model.GradeAPlus},
	{80, model.GradeA},
	{70, model.GradeB},
	{55, model.GradeC},
	{40, model.GradeD},
}

// Result is the aggregated outcome of a scored pair.
type Result struct {
	Overall     int
	Grade       model.Grade
	Qualified   bool
	Competitive bool
	Gates       []string
	Breakdown   model.ScoreBreakdown
}

// GradeFor maps an overall score to its letter grade.
func GradeFor(score int) model.Grade {
	for _, g := range gradeFloors {
		if score >= g.min {
			return g.grade
		}
	}
	return model.GradeF
}

// ApplyWeights stamps the configured weight onto each factor.
func ApplyWeights(b *model.ScoreBreakdown, w Weights) {
	b.Location.Weight = w.Location
	b.Space.Weight = w.Space
	b.Building.Weight = w.Building
	b.PricingTimeline.Weight = w.PricingTimeline
	b.Experience.Weight = w.Experience
}

// Aggregate combines weighted factor scores into an overall score and grade.
// Any failed gate, in the breakdown or passed in extraGates, forces the
// qualified and competitive flags off.
func Aggregate(b model.ScoreBreakdown, t Thresholds, extraGates ...string) (Result, error) {
	if err := t.validate(); err != nil {
		return Result{}, eris.Wrap(err, "scorer: aggregate")
	}

	factors := []*model.MatchFactor{&b.Location, &b.Space, &b.Building, &b.PricingTimeline, &b.Experience}

	var sum, weightSum float64
	for _, f := range factors {
		if f.Score < 0 || f.Score > 100 || math.IsNaN(f.Score) {
			return Result{}, eris.Errorf("scorer: factor %s score %.2f outside [0, 100]", f.Name, f.Score)
		}
		if f.Weight < 0 || f.Weight > 1 || math.IsNaN(f.Weight) {
			return Result{}, eris.Errorf("scorer: factor %s weight %.4f outside [0, 1]", f.Name, f.Weight)
		}
		f.Weighted = round2(f.Score * f.Weight)
		sum += f.Score * f.Weight
		weightSum += f.Weight
	}
	if math.Abs(weightSum-1) > weightTolerance {
		return Result{}, eris.Wrapf(ErrWeightSum, "got %.6f", weightSum)
	}

	overall := int(math.Max(0, math.Min(100, math.Round(sum))))
	gates := append(b.Gates(), extraGates...)
	eligible := len(gates) == 0

	return Result{
		Overall:     overall,
		Grade:       GradeFor(overall),
		Qualified:   eligible && overall >= t.Qualify,
		Competitive: eligible && overall >= t.Competitive,
		Gates:       gates,
		Breakdown:   b,
	}, nil
}
