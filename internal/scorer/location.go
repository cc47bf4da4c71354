package scorer

import (
	"fmt"

	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/region"
)

// Location factor blend.
const (
	proximityShare = 0.7
	densityShare   = 0.3

	sameCityScore  = 100
	sameStateScore = 75
)

// ScoreLocation scores proximity to the opportunity point blended with the
// federal density around the listing. density may be nil when the lookup
// failed; the density component is then 0.
func ScoreLocation(l *model.Listing, o *model.Opportunity, density *model.FederalDensityScore, cfg Config, regions *region.Table) model.MatchFactor {
	inputs := map[string]any{}
	var proximity float64
	var summary string

	if d, ok := pairDistance(l, o); ok {
		r := o.DelineatedRadiusMiles
		if r <= 0 {
			r = cfg.DefaultRadiusMiles
		}
		proximity = decay(d, r, 3*r)
		inputs["distance_miles"] = round2(d)
		inputs["target_radius_miles"] = r
		summary = fmt.Sprintf("%.1f mi from target point (radius %.0f mi)", d, r)
	} else {
		listingState := region.NormalizeState(l.State)
		acceptable := false
		for _, s := range regions.AcceptableStates(o) {
			if s == listingState {
				acceptable = true
				break
			}
		}
		sameCity := o.City != "" && region.NormalizeCity(l.City) == region.NormalizeCity(o.City)
		switch {
		case acceptable && sameCity:
			proximity = sameCityScore
			summary = "same city in an acceptable state"
		case acceptable:
			proximity = sameStateScore
			summary = "acceptable state"
		default:
			summary = "outside the acceptable states"
		}
		inputs["same_city"] = sameCity
		inputs["acceptable_state"] = acceptable
	}

	var densityScore float64
	if density != nil {
		densityScore = float64(density.Score)
		inputs["federal_density_score"] = density.Score
		inputs["federal_properties_nearby"] = density.TotalProperties
	} else {
		inputs["federal_density_score"] = nil
	}
	inputs["proximity"] = round2(proximity)

	f := model.MatchFactor{
		Name:  model.FactorLocation,
		Score: clampScore(proximityShare*proximity + densityShare*densityScore),
		Details: model.FactorDetails{
			Summary: summary,
			Inputs:  inputs,
		},
	}
	if reason, detail := geographicGate(l, o, cfg.Rules, regions); reason != RejectNone {
		f.Details.Gate = string(reason)
		f.Details.Summary = detail
	}
	return f
}
