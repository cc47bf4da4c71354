package scorer

import (
	"fmt"
	"slices"

	"github.com/sells-group/lease-match/internal/model"
)

// Building component weights.
const (
	classShare    = 0.40
	adaShare      = 0.25
	featuresShare = 0.35
)

// ScoreBuilding scores building class, accessibility and coverage of the
// required features.
func ScoreBuilding(l *model.Listing, o *model.Opportunity) model.MatchFactor {
	class, classNote := classScore(l.BuildingClass, o.BuildingClasses)

	ada := 100.0
	if o.RequiresADA && !l.ADAAccessible {
		ada = 0
	}

	features, missing := featureCoverage(l, o)

	score := classShare*class + adaShare*ada + featuresShare*features
	summary := classNote
	if ada == 0 {
		summary += "; not accessible"
	}
	if len(missing) > 0 {
		summary += fmt.Sprintf("; missing %v", missing)
	}

	return model.MatchFactor{
		Name:  model.FactorBuilding,
		Score: clampScore(score),
		Details: model.FactorDetails{
			Summary: summary,
			Inputs: map[string]any{
				"class_score":      round2(class),
				"ada_score":        ada,
				"feature_coverage": round2(features),
				"building_class":   string(l.BuildingClass),
				"missing_features": missing,
			},
		},
	}
}

// classScore rates the listing class against the acceptable set. A class
// better than every acceptable class counts as acceptable.
func classScore(c model.BuildingClass, acceptable []model.BuildingClass) (float64, string) {
	lowest, highest := 0, 0
	for _, a := range acceptable {
		r := a.Rank()
		if r == 0 {
			continue
		}
		if lowest == 0 || r < lowest {
			lowest = r
		}
		if r > highest {
			highest = r
		}
	}

	switch {
	case lowest == 0:
		return 100, "no class requirement"
	case !c.Valid():
		return 50, "building class unknown"
	case slices.Contains(acceptable, c) || c.Rank() > highest:
		return 100, fmt.Sprintf("class %s acceptable", c)
	case c.Rank() == lowest-1:
		return 50, fmt.Sprintf("class %s one below requirement", c)
	default:
		return 0, fmt.Sprintf("class %s below requirement", c)
	}
}

// featureCoverage is the mean satisfaction of the required features.
func featureCoverage(l *model.Listing, o *model.Opportunity) (float64, []string) {
	var scores []float64
	var missing []string

	if o.MinParkingSpaces > 0 {
		s := ratioScore(float64(l.ParkingSpaces), float64(o.MinParkingSpaces))
		scores = append(scores, s)
		if s < 100 {
			missing = append(missing, "parking")
		}
	}
	if o.RequiresBackupPower {
		if l.BackupPower {
			scores = append(scores, 100)
		} else {
			scores = append(scores, 0)
			missing = append(missing, "backup_power")
		}
	}
	if o.MinSecurityLevel > 0 {
		s := ratioScore(float64(l.SecurityLevel), float64(o.MinSecurityLevel))
		scores = append(scores, s)
		if s < 100 {
			missing = append(missing, "security_level")
		}
	}
	for _, cert := range o.RequiredCertifications {
		if hasCertification(l.Certifications, cert) {
			scores = append(scores, 100)
		} else {
			scores = append(scores, 0)
			missing = append(missing, cert)
		}
	}

	if len(scores) == 0 {
		return 100, nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), missing
}

func ratioScore(have, want float64) float64 {
	if have >= want {
		return 100
	}
	if have <= 0 {
		return 0
	}
	return 100 * have / want
}
