package scorer

import (
	"fmt"

	"github.com/sells-group/lease-match/internal/model"
)

// ScoreSpace scores how well the available area fits the required band.
// Inside the band scores 100; outside it decays linearly to 0 at the
// tolerance limits.
func ScoreSpace(l *model.Listing, o *model.Opportunity, rules Rules) model.MatchFactor {
	minSF, maxSF := sizeBand(o)
	avail := float64(l.AvailableSF)

	f := model.MatchFactor{
		Name: model.FactorSpace,
		Details: model.FactorDetails{Inputs: map[string]any{
			"available_sf": l.AvailableSF,
			"min_sf":       o.MinSF,
			"max_sf":       o.MaxSF,
		}},
	}

	switch {
	case avail <= 0:
		f.Details.Summary = "available area not disclosed"
	case minSF == 0 && maxSF == 0:
		f.Score = 100
		f.Details.Summary = "no area requirement"
	case avail < minSF:
		f.Score = clampScore(rise(avail, rules.MinSizeRatio*minSF, minSF))
		f.Details.Summary = fmt.Sprintf("%.0f SF short of the %.0f SF minimum", minSF-avail, minSF)
	case maxSF > 0 && avail > maxSF:
		f.Score = clampScore(decay(avail, maxSF, rules.MaxSizeRatio*maxSF))
		f.Details.Summary = fmt.Sprintf("%.0f SF over the %.0f SF maximum", avail-maxSF, maxSF)
	default:
		f.Score = 100
		f.Details.Summary = "within the required range"
	}

	if reason, detail := sizeGate(l, o, rules); reason != RejectNone {
		f.Score = 0
		f.Details.Gate = string(reason)
		f.Details.Summary = detail
	}
	return f
}
