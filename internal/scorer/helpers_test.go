package scorer

import (
	"context"
	"time"

	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/region"
)

func ptr[T any](v T) *T { return &v }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// dcListing is a class A downtown Washington listing.
func dcListing() *model.Listing {
	return &model.Listing{
		ID:              "L-DC",
		Title:           "1300 Pennsylvania Ave",
		City:            "Washington",
		State:           "DC",
		Latitude:        ptr(38.9007),
		Longitude:       ptr(-77.0365),
		TotalSF:         40000,
		AvailableSF:     15000,
		BuildingClass:   model.ClassA,
		ADAAccessible:   true,
		AskingRatePerSF: 48,
		AvailableDate:   day("2026-06-01"),
		Status:          model.ListingActive,
	}
}

// dcOpportunity requires 10,000-20,000 SF of class A/B space in the DC metro.
func dcOpportunity() *model.Opportunity {
	return &model.Opportunity{
		ID:              "O-DC",
		Title:           "Agency HQ annex",
		City:            "Washington",
		State:           "DC",
		Region:          "DC Metro",
		Latitude:        ptr(38.8951),
		Longitude:       ptr(-77.0364),
		MinSF:           10000,
		MaxSF:           20000,
		BuildingClasses: []model.BuildingClass{model.ClassA, model.ClassB},
		RequiresADA:     true,
		OccupancyDate:   day("2026-09-01"),
		Status:          model.OpportunityActive,
	}
}

// fixedDensity returns the same density score for every point.
type fixedDensity struct {
	score int
	err   error
	calls int
}

func (f *fixedDensity) Score(_ context.Context, lat, lng, radius float64) (*model.FederalDensityScore, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.FederalDensityScore{Latitude: lat, Longitude: lng, RadiusMiles: radius, Score: f.score, TotalProperties: 12}, nil
}

func newTestEngine(density DensityLookup) *Engine {
	e, err := NewEngine(DefaultConfig(), density, region.Default())
	if err != nil {
		panic(err)
	}
	return e
}
