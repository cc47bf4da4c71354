package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/region"
)

func TestPrefilter_Check(t *testing.T) {
	pf := NewPrefilter(DefaultConfig().Rules, region.Default())

	tests := []struct {
		name   string
		mutate func(*model.Listing, *model.Opportunity)
		want   RejectReason
	}{
		{"clean pass", func(*model.Listing, *model.Opportunity) {}, RejectNone},
		{"draft listing", func(l *model.Listing, _ *model.Opportunity) { l.Status = model.ListingDraft }, RejectInactiveListing},
		{"cancelled opportunity", func(_ *model.Listing, o *model.Opportunity) { o.Status = model.OpportunityCancelled }, RejectInactiveOpportunity},
		{"inactive listing wins over size", func(l *model.Listing, _ *model.Opportunity) {
			l.Status = model.ListingArchived
			l.AvailableSF = 0
		}, RejectInactiveListing},
		{"wyoming listing", func(l *model.Listing, _ *model.Opportunity) {
			l.City, l.State = "Cheyenne", "WY"
			l.Latitude, l.Longitude = ptr(41.14), ptr(-104.82)
		}, RejectNoGeographicOverlap},
		{"region state accepted", func(l *model.Listing, o *model.Opportunity) {
			l.City, l.State = "Arlington", "VA"
			l.Latitude, l.Longitude = ptr(38.8816), ptr(-77.0910)
			o.Latitude, o.Longitude = nil, nil
		}, RejectNone},
		{"full state name accepted", func(l *model.Listing, o *model.Opportunity) {
			l.State = "District of Columbia"
			o.Region = ""
		}, RejectNone},
		{"within radius across a state line", func(l *model.Listing, o *model.Opportunity) {
			l.City, l.State = "Wilmington", "DE"
			l.Latitude, l.Longitude = ptr(39.7391), ptr(-75.5398)
			o.City, o.State, o.Region = "Philadelphia", "PA", ""
			o.Latitude, o.Longitude = ptr(39.9526), ptr(-75.1652)
		}, RejectNone},
		{"explicit acceptable states", func(l *model.Listing, o *model.Opportunity) {
			l.State = "WY"
			l.Latitude, l.Longitude = ptr(41.14), ptr(-104.82)
			o.AcceptableStates = []string{"wy"}
		}, RejectNone},
		{"no area", func(l *model.Listing, _ *model.Opportunity) { l.AvailableSF = 0 }, RejectNoDisclosedArea},
		{"undersized", func(l *model.Listing, o *model.Opportunity) {
			l.AvailableSF = 2000
			o.MinSF, o.MaxSF = 50000, 80000
		}, RejectBelowSizeTolerance},
		{"at half the minimum", func(l *model.Listing, _ *model.Opportunity) { l.AvailableSF = 5000 }, RejectNone},
		{"oversized", func(l *model.Listing, _ *model.Opportunity) { l.AvailableSF = 60001 }, RejectAboveSizeTolerance},
		{"unbounded max", func(l *model.Listing, o *model.Opportunity) {
			l.AvailableSF = 1_000_000
			o.MaxSF = 0
		}, RejectNone},
		{"too late", func(l *model.Listing, _ *model.Opportunity) { l.AvailableDate = day("2026-12-01") }, RejectAvailabilityTooLate},
		{"late but inside grace", func(l *model.Listing, _ *model.Opportunity) { l.AvailableDate = day("2026-11-30") }, RejectNone},
		{"no availability date", func(l *model.Listing, _ *model.Opportunity) { l.AvailableDate = nil }, RejectNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := dcListing(), dcOpportunity()
			tt.mutate(l, o)
			d := pf.Check(l, o)
			assert.Equal(t, tt.want, d.Reason)
			assert.Equal(t, tt.want == RejectNone, d.Pass)
			if !d.Pass {
				assert.NotEmpty(t, d.Detail)
			}
		})
	}
}

func TestPrefilter_NilRegions(t *testing.T) {
	pf := NewPrefilter(DefaultConfig().Rules, nil)
	l, o := dcListing(), dcOpportunity()
	l.State = "VA"
	l.Latitude, l.Longitude = ptr(37.5407), ptr(-77.4360) // Richmond, ~95 mi away
	assert.Equal(t, RejectNoGeographicOverlap, pf.Check(l, o).Reason)
}
