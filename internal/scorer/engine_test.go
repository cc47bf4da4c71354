package scorer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lease-match/internal/model"
)

func TestEngine_CleanDCMatch(t *testing.T) {
	density := &fixedDensity{score: 50}
	e := newTestEngine(density)

	m, d, err := e.Evaluate(context.Background(), dcListing(), dcOpportunity())
	require.NoError(t, err)
	require.True(t, d.Pass)
	require.NotNil(t, m)

	assert.Equal(t, "L-DC", m.ListingID)
	assert.Equal(t, "O-DC", m.OpportunityID)
	assert.Equal(t, 85.0, m.Breakdown.Location.Score)
	assert.Equal(t, 100.0, m.Breakdown.Space.Score)
	assert.Equal(t, 100.0, m.Breakdown.Building.Score)
	assert.Equal(t, 100.0, m.Breakdown.PricingTimeline.Score)
	assert.Equal(t, 20.0, m.Breakdown.Experience.Score)
	assert.Equal(t, 91, m.OverallScore)
	assert.Equal(t, model.GradeAPlus, m.Grade)
	assert.True(t, m.Qualified)
	assert.True(t, m.Competitive)
	assert.Empty(t, m.Breakdown.Gates())
	assert.Equal(t, 1, density.calls)
}

func TestEngine_WyomingVersusDC(t *testing.T) {
	e := newTestEngine(&fixedDensity{score: 0})
	l := dcListing()
	l.City, l.State = "Cheyenne", "WY"
	l.Latitude, l.Longitude = ptr(41.14), ptr(-104.82)

	m, d, err := e.Evaluate(context.Background(), l, dcOpportunity())
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.False(t, d.Pass)
	assert.Equal(t, RejectNoGeographicOverlap, d.Reason)

	// Scoring anyway never qualifies the pair.
	m, err = e.Score(context.Background(), l, dcOpportunity())
	require.NoError(t, err)
	assert.False(t, m.Qualified)
	assert.False(t, m.Competitive)
	assert.Zero(t, m.Breakdown.Location.Score)
	assert.Contains(t, m.Breakdown.Gates(), string(RejectNoGeographicOverlap))
}

func TestEngine_Undersized(t *testing.T) {
	e := newTestEngine(nil)
	l, o := dcListing(), dcOpportunity()
	l.AvailableSF = 2000
	o.MinSF, o.MaxSF = 50000, 80000

	_, d, err := e.Evaluate(context.Background(), l, o)
	require.NoError(t, err)
	assert.Equal(t, RejectBelowSizeTolerance, d.Reason)

	m, err := e.Score(context.Background(), l, o)
	require.NoError(t, err)
	assert.False(t, m.Qualified)
	assert.Zero(t, m.Breakdown.Space.Score)
}

func TestEngine_Deterministic(t *testing.T) {
	e := newTestEngine(&fixedDensity{score: 37})
	l, o := dcListing(), dcOpportunity()
	l.PriorGovernmentLeases = 2
	o.MaxRatePerSF = 45

	first, err := e.Score(context.Background(), l, o)
	require.NoError(t, err)
	for range 5 {
		again, err := e.Score(context.Background(), l, o)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_DensityFailureDegrades(t *testing.T) {
	e := newTestEngine(&fixedDensity{err: fmt.Errorf("connection refused")})

	m, err := e.Score(context.Background(), dcListing(), dcOpportunity())
	require.NoError(t, err)
	assert.Equal(t, 70.0, m.Breakdown.Location.Score)
	assert.Nil(t, m.Breakdown.Location.Details.Inputs["federal_density_score"])
	assert.True(t, m.Qualified)
}

func TestEngine_MalformedRecords(t *testing.T) {
	e := newTestEngine(nil)

	l := dcListing()
	l.Latitude = nil
	_, err := e.Score(context.Background(), l, dcOpportunity())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedRecord))

	o := dcOpportunity()
	o.MaxSF = 100
	_, err = e.Score(context.Background(), dcListing(), o)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMalformedRecord))
}

func TestEngine_InactiveScoredNeverQualifies(t *testing.T) {
	e := newTestEngine(nil)
	l := dcListing()
	l.Status = model.ListingDraft

	m, err := e.Score(context.Background(), l, dcOpportunity())
	require.NoError(t, err)
	assert.Positive(t, m.OverallScore)
	assert.False(t, m.Qualified)
}

// TestEngine_PrefilterSoundness checks over a grid of pairs that anything the
// prefilter rejects is never qualified when scored directly, and that the
// rejecting reason shows up as a gate.
func TestEngine_PrefilterSoundness(t *testing.T) {
	e := newTestEngine(&fixedDensity{score: 100})
	ctx := context.Background()

	type place struct {
		city, state string
		lat, lng    float64
	}
	places := []place{
		{"Washington", "DC", 38.9007, -77.0365},
		{"Arlington", "VA", 38.8816, -77.0910},
		{"Richmond", "VA", 37.5407, -77.4360},
		{"Cheyenne", "WY", 41.14, -104.82},
		{"Rosslyn", "", 38.8960, -77.0700},
	}
	areas := []int{0, 2000, 4999, 5000, 15000, 60000, 60001, 250000}
	avail := []string{"", "2026-01-01", "2026-11-30", "2026-12-01", "2027-06-01"}
	listingStatus := []model.ListingStatus{model.ListingActive, model.ListingDraft}
	oppStatus := []model.OpportunityStatus{model.OpportunityActive, model.OpportunityAwarded}

	var rejected, passed int
	for _, p := range places {
		for _, a := range areas {
			for _, date := range avail {
				for _, ls := range listingStatus {
					for _, os := range oppStatus {
						l := dcListing()
						l.City, l.State = p.city, p.state
						l.Latitude, l.Longitude = ptr(p.lat), ptr(p.lng)
						l.AvailableSF = a
						l.Status = ls
						l.AvailableDate = nil
						if date != "" {
							l.AvailableDate = day(date)
						}
						o := dcOpportunity()
						o.Status = os

						d := e.Prefilter().Check(l, o)
						m, err := e.Score(ctx, l, o)
						require.NoError(t, err)

						if d.Pass {
							passed++
							assert.Empty(t, m.Breakdown.Gates(), "%s %d %s", p.city, a, date)
							continue
						}
						rejected++
						assert.False(t, m.Qualified, "%s: %s %d %s", d.Reason, p.city, a, date)
						assert.False(t, m.Competitive, "%s: %s %d %s", d.Reason, p.city, a, date)
						if d.Reason != RejectInactiveListing && d.Reason != RejectInactiveOpportunity {
							assert.Contains(t, m.Breakdown.Gates(), string(d.Reason))
						}
					}
				}
			}
		}
	}
	assert.Positive(t, rejected)
	assert.Positive(t, passed)
}
