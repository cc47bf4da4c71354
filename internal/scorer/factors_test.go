package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/region"
)

// milesNorth moves a latitude n miles due north.
func milesNorth(lat, n float64) float64 {
	return lat + n/69.093
}

func TestScoreLocation_Proximity(t *testing.T) {
	cfg := DefaultConfig()
	regions := region.Default()

	tests := []struct {
		name  string
		miles float64
		want  float64
		delta float64
	}{
		{"inside radius", 3, 70, 0.01},
		{"at twice the radius", 20, 35, 0.5},
		{"beyond three radii", 31, 0, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := dcListing(), dcOpportunity()
			o.DelineatedRadiusMiles = 10
			l.Latitude = ptr(milesNorth(*o.Latitude, tt.miles))
			l.Longitude = o.Longitude

			f := ScoreLocation(l, o, nil, cfg, regions)
			assert.Equal(t, model.FactorLocation, f.Name)
			assert.InDelta(t, tt.want, f.Score, tt.delta)
			assert.False(t, f.GateFailed())
		})
	}
}

func TestScoreLocation_DefaultRadius(t *testing.T) {
	l, o := dcListing(), dcOpportunity()
	l.Latitude = ptr(milesNorth(*o.Latitude, 24))
	l.Longitude = o.Longitude

	f := ScoreLocation(l, o, nil, DefaultConfig(), region.Default())
	assert.InDelta(t, 70, f.Score, 0.01)
	assert.Equal(t, 25.0, f.Details.Inputs["target_radius_miles"])
}

func TestScoreLocation_DensityBlend(t *testing.T) {
	l, o := dcListing(), dcOpportunity()
	f := ScoreLocation(l, o, &model.FederalDensityScore{Score: 80}, DefaultConfig(), region.Default())
	assert.InDelta(t, 94, f.Score, 0.01)
	assert.Equal(t, 80, f.Details.Inputs["federal_density_score"])
}

func TestScoreLocation_WithoutOpportunityPoint(t *testing.T) {
	cfg := DefaultConfig()
	regions := region.Default()

	tests := []struct {
		name      string
		city      string
		state     string
		want      float64
		wantGated bool
	}{
		{"same city", "washington", "DC", 70, false},
		{"acceptable state", "Bethesda", "MD", 52.5, false},
		{"outside", "Cheyenne", "WY", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := dcListing(), dcOpportunity()
			o.Latitude, o.Longitude = nil, nil
			l.City, l.State = tt.city, tt.state

			f := ScoreLocation(l, o, nil, cfg, regions)
			assert.InDelta(t, tt.want, f.Score, 0.01)
			assert.Equal(t, tt.wantGated, f.GateFailed())
		})
	}
}

func TestScoreLocation_GateMatchesPrefilter(t *testing.T) {
	l, o := dcListing(), dcOpportunity()
	l.State = "WY"
	l.Latitude, l.Longitude = ptr(41.14), ptr(-104.82)

	f := ScoreLocation(l, o, nil, DefaultConfig(), region.Default())
	assert.Equal(t, string(RejectNoGeographicOverlap), f.Details.Gate)
	assert.Zero(t, f.Score)
}

func TestScoreSpace(t *testing.T) {
	rules := DefaultConfig().Rules
	tests := []struct {
		name     string
		avail    int
		min, max int
		want     float64
		wantGate RejectReason
	}{
		{"inside band", 15000, 10000, 20000, 100, RejectNone},
		{"at min", 10000, 10000, 20000, 100, RejectNone},
		{"at max", 20000, 10000, 20000, 100, RejectNone},
		{"three quarters of min", 7500, 10000, 20000, 50, RejectNone},
		{"half of min", 5000, 10000, 20000, 0, RejectNone},
		{"below tolerance", 4999, 10000, 20000, 0, RejectBelowSizeTolerance},
		{"double max", 40000, 10000, 20000, 50, RejectNone},
		{"above tolerance", 60001, 10000, 20000, 0, RejectAboveSizeTolerance},
		{"unbounded above", 500000, 10000, 0, 100, RejectNone},
		{"max below min collapses", 12000, 10000, 8000, 90, RejectNone},
		{"no requirement", 3000, 0, 0, 100, RejectNone},
		{"no area", 0, 10000, 20000, 0, RejectNoDisclosedArea},
		{"undersized scenario", 2000, 50000, 80000, 0, RejectBelowSizeTolerance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := dcListing(), dcOpportunity()
			l.AvailableSF = tt.avail
			o.MinSF, o.MaxSF = tt.min, tt.max

			f := ScoreSpace(l, o, rules)
			assert.InDelta(t, tt.want, f.Score, 0.01)
			assert.Equal(t, string(tt.wantGate), f.Details.Gate)
		})
	}
}

func TestScoreSpace_MonotonicTowardBand(t *testing.T) {
	rules := DefaultConfig().Rules
	o := dcOpportunity()
	score := func(avail int) float64 {
		l := dcListing()
		l.AvailableSF = avail
		return ScoreSpace(l, o, rules).Score
	}

	prev := -1.0
	for avail := 1000; avail <= 15000; avail += 250 {
		s := score(avail)
		require.GreaterOrEqual(t, s, prev, "avail=%d", avail)
		prev = s
	}
	prev = 101.0
	for avail := 15000; avail <= 90000; avail += 500 {
		s := score(avail)
		require.LessOrEqual(t, s, prev, "avail=%d", avail)
		prev = s
	}
}

func TestClassScore(t *testing.T) {
	ab := []model.BuildingClass{model.ClassA, model.ClassB}
	tests := []struct {
		name       string
		class      model.BuildingClass
		acceptable []model.BuildingClass
		want       float64
	}{
		{"no requirement", model.ClassC, nil, 100},
		{"in set", model.ClassB, ab, 100},
		{"one below", model.ClassC, ab, 50},
		{"two below", model.ClassC, []model.BuildingClass{model.ClassA}, 0},
		{"better than required", model.ClassA, []model.BuildingClass{model.ClassB}, 100},
		{"unknown class", "", ab, 50},
		{"invalid requirement ignored", model.ClassC, []model.BuildingClass{"Z"}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := classScore(tt.class, tt.acceptable)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, note)
		})
	}
}

func TestScoreBuilding(t *testing.T) {
	l, o := dcListing(), dcOpportunity()
	f := ScoreBuilding(l, o)
	assert.Equal(t, 100.0, f.Score)

	l.ADAAccessible = false
	f = ScoreBuilding(l, o)
	assert.InDelta(t, 75, f.Score, 0.01)
	assert.Contains(t, f.Details.Summary, "not accessible")
}

func TestFeatureCoverage(t *testing.T) {
	l, o := dcListing(), dcOpportunity()
	o.MinParkingSpaces = 100
	o.RequiresBackupPower = true
	o.MinSecurityLevel = 4
	o.RequiredCertifications = []string{"LEED Gold"}

	l.ParkingSpaces = 50
	l.BackupPower = false
	l.SecurityLevel = 4
	l.Certifications = []string{"leed gold"}

	got, missing := featureCoverage(l, o)
	assert.InDelta(t, (50+0+100+100)/4.0, got, 1e-9)
	assert.Equal(t, []string{"parking", "backup_power"}, missing)

	f := ScoreBuilding(l, o)
	assert.InDelta(t, 40+25+0.35*62.5, f.Score, 0.01)
}

func TestPricingScore(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		maxRate float64
		class   model.BuildingClass
		want    float64
	}{
		{"undisclosed", 0, 40, model.ClassA, 50},
		{"within budget", 40, 40, model.ClassA, 100},
		{"quarter over budget", 50, 40, model.ClassA, 50},
		{"far over budget", 70, 40, model.ClassA, 0},
		{"class B in market", 30, 0, model.ClassB, 100},
		{"class B below market", 20, 0, model.ClassB, 85},
		{"class B above market", 52.5, 0, model.ClassB, 50},
		{"class C top of range", 30, 0, model.ClassC, 100},
		{"unknown class wide range", 59, 0, "", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := dcListing(), dcOpportunity()
			l.AskingRatePerSF = tt.rate
			l.BuildingClass = tt.class
			o.MaxRatePerSF = tt.maxRate
			got, _ := pricingScore(l, o)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestTimelineScore(t *testing.T) {
	grace := DefaultConfig().Rules.DateGrace
	tests := []struct {
		name      string
		avail     string
		want      float64
		wantSlack bool
	}{
		{"three months early", "2026-06-01", 100, true},
		{"on the day", "2026-09-01", 100, false},
		{"45 days late", "2026-10-16", 50, false},
		{"past grace", "2026-12-15", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := dcListing(), dcOpportunity()
			l.AvailableDate = day(tt.avail)
			got, _, slack := timelineScore(l, o, grace)
			assert.InDelta(t, tt.want, got, 0.01)
			assert.Equal(t, tt.wantSlack, slack)
		})
	}

	l, o := dcListing(), dcOpportunity()
	l.AvailableDate = nil
	got, _, _ := timelineScore(l, o, grace)
	assert.Equal(t, 70.0, got)
}

func TestScorePricingTimeline(t *testing.T) {
	rules := DefaultConfig().Rules
	l, o := dcListing(), dcOpportunity()
	l.AvailableDate = nil
	f := ScorePricingTimeline(l, o, rules)
	assert.Equal(t, model.FactorPricingTimeline, f.Name)
	assert.InDelta(t, 85, f.Score, 0.01)
	assert.False(t, f.GateFailed())

	l.AvailableDate = day("2027-01-15")
	f = ScorePricingTimeline(l, o, rules)
	assert.Equal(t, string(RejectAvailabilityTooLate), f.Details.Gate)
	assert.InDelta(t, 50, f.Score, 0.01)
}

func TestScoreExperience(t *testing.T) {
	tests := []struct {
		name      string
		leases    int
		converted int
		want      float64
	}{
		{"no signals", 0, 0, 20},
		{"one lease", 1, 0, 60},
		{"three leases", 3, 0, 80},
		{"converted only", 0, 2, 50},
		{"capped", 3, 2, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := dcListing()
			l.PriorGovernmentLeases = tt.leases
			l.ConvertedMatches = tt.converted
			f := ScoreExperience(l)
			assert.Equal(t, tt.want, f.Score)
			assert.Equal(t, tt.leases, f.Details.Inputs["prior_government_leases"])
		})
	}
}

func TestCurves(t *testing.T) {
	assert.Equal(t, 100.0, decay(5, 10, 30))
	assert.Equal(t, 50.0, decay(20, 10, 30))
	assert.Equal(t, 0.0, decay(30, 10, 30))
	assert.Equal(t, 0.0, decay(11, 10, 10))

	assert.Equal(t, 0.0, rise(5, 5, 10))
	assert.Equal(t, 50.0, rise(7.5, 5, 10))
	assert.Equal(t, 100.0, rise(10, 5, 10))

	assert.Equal(t, 100.0, clampScore(100.0001))
	assert.Equal(t, 0.0, clampScore(-3))
	assert.Equal(t, 33.33, clampScore(33.333))
}
