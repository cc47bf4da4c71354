package scorer

import (
	"fmt"

	"github.com/sells-group/lease-match/internal/model"
)

// Experience scoring.
const (
	experienceBaseline = 20
	declaredExperience = 60
	perAdditionalLease = 10
	perConvertedMatch  = 15
)

// ScoreExperience rates the listing owner's track record with government
// tenants.
func ScoreExperience(l *model.Listing) model.MatchFactor {
	score := float64(experienceBaseline)
	note := "no track record"

	if l.PriorGovernmentLeases > 0 {
		score = declaredExperience + perAdditionalLease*float64(l.PriorGovernmentLeases-1)
		note = fmt.Sprintf("%d prior government leases", l.PriorGovernmentLeases)
	}
	if l.ConvertedMatches > 0 {
		score += perConvertedMatch * float64(l.ConvertedMatches)
		note += fmt.Sprintf(", %d converted matches", l.ConvertedMatches)
	}

	return model.MatchFactor{
		Name:  model.FactorExperience,
		Score: clampScore(score),
		Details: model.FactorDetails{
			Summary: note,
			Inputs: map[string]any{
				"prior_government_leases": l.PriorGovernmentLeases,
				"converted_matches":       l.ConvertedMatches,
			},
		},
	}
}
