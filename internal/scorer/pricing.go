package scorer

import (
	"fmt"
	"time"

	"github.com/sells-group/lease-match/internal/model"
)

// Pricing/timeline blend and fallbacks.
const (
	pricingShare  = 0.5
	timelineShare = 0.5

	undisclosedRateScore = 50
	belowRangeScore      = 85
	noDatesScore         = 70

	// rateCeilingRatio is where an over-budget rate reaches 0.
	rateCeilingRatio = 1.5

	slackDays = 30
)

// rateRange is an expected annual rent per square foot.
type rateRange struct{ low, high float64 }

var expectedRates = map[model.BuildingClass]rateRange{
	model.ClassA: {30, 60},
	model.ClassB: {22, 42},
	model.ClassC: {15, 30},
}

var unknownClassRates = rateRange{15, 60}

// ScorePricingTimeline blends the asking rate against budget or market with
// the availability date against the occupancy date.
func ScorePricingTimeline(l *model.Listing, o *model.Opportunity, rules Rules) model.MatchFactor {
	pricing, pricingNote := pricingScore(l, o)
	timeline, timelineNote, slack := timelineScore(l, o, rules.DateGrace)

	f := model.MatchFactor{
		Name:  model.FactorPricingTimeline,
		Score: clampScore(pricingShare*pricing + timelineShare*timeline),
		Details: model.FactorDetails{
			Summary: pricingNote + "; " + timelineNote,
			Inputs: map[string]any{
				"pricing_score":   round2(pricing),
				"timeline_score":  round2(timeline),
				"asking_rate":     l.AskingRatePerSF,
				"max_rate":        o.MaxRatePerSF,
				"ample_lead_time": slack,
			},
		},
	}
	if reason, detail := timelineGate(l, o, rules); reason != RejectNone {
		f.Details.Gate = string(reason)
		f.Details.Summary = detail
	}
	return f
}

func pricingScore(l *model.Listing, o *model.Opportunity) (float64, string) {
	rate := l.AskingRatePerSF
	if rate <= 0 {
		return undisclosedRateScore, "rate not disclosed"
	}
	if o.MaxRatePerSF > 0 {
		if rate <= o.MaxRatePerSF {
			return 100, fmt.Sprintf("$%.2f/SF within $%.2f budget", rate, o.MaxRatePerSF)
		}
		return decay(rate, o.MaxRatePerSF, rateCeilingRatio*o.MaxRatePerSF),
			fmt.Sprintf("$%.2f/SF over $%.2f budget", rate, o.MaxRatePerSF)
	}

	rr, ok := expectedRates[l.BuildingClass]
	if !ok {
		rr = unknownClassRates
	}
	switch {
	case rate < rr.low:
		return belowRangeScore, fmt.Sprintf("$%.2f/SF below market", rate)
	case rate <= rr.high:
		return 100, fmt.Sprintf("$%.2f/SF within market", rate)
	default:
		return decay(rate, rr.high, rateCeilingRatio*rr.high), fmt.Sprintf("$%.2f/SF above market", rate)
	}
}

// timelineScore returns the score, a note, and whether the space is ready at
// least slackDays ahead of occupancy.
func timelineScore(l *model.Listing, o *model.Opportunity, grace time.Duration) (float64, string, bool) {
	if l.AvailableDate == nil || o.OccupancyDate == nil {
		return noDatesScore, "timeline unknown", false
	}
	avail, occupy := *l.AvailableDate, *o.OccupancyDate
	if !avail.After(occupy) {
		slack := occupy.Sub(avail) >= slackDays*24*time.Hour
		return 100, "available by occupancy", slack
	}
	late := avail.Sub(occupy)
	if grace <= 0 {
		return 0, "available after occupancy", false
	}
	return decay(float64(late), 0, float64(grace)),
		fmt.Sprintf("available %d days after occupancy", int(late.Hours()/24)), false
}
