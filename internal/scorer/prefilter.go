package scorer

import (
	"fmt"
	"slices"

	"github.com/sells-group/lease-match/internal/geospatial"
	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/region"
)

// RejectReason names a hard eligibility constraint.
type RejectReason string

const (
	RejectNone                RejectReason = ""
	RejectInactiveListing     RejectReason = "inactive_listing"
	RejectInactiveOpportunity RejectReason = "inactive_opportunity"
	RejectNoGeographicOverlap RejectReason = "no_geographic_overlap"
	RejectNoDisclosedArea     RejectReason = "no_disclosed_area"
	RejectBelowSizeTolerance  RejectReason = "below_size_tolerance"
	RejectAboveSizeTolerance  RejectReason = "above_size_tolerance"
	RejectAvailabilityTooLate RejectReason = "availability_too_late"
)

// RejectReasons lists every reason in evaluation order.
var RejectReasons = []RejectReason{
	RejectInactiveListing,
	RejectInactiveOpportunity,
	RejectNoGeographicOverlap,
	RejectNoDisclosedArea,
	RejectBelowSizeTolerance,
	RejectAboveSizeTolerance,
	RejectAvailabilityTooLate,
}

// Decision is the prefilter verdict for a pair.
type Decision struct {
	Pass   bool         `json:"pass"`
	Reason RejectReason `json:"reason,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

// Prefilter discards pairs that can never qualify before any factor work.
type Prefilter struct {
	rules   Rules
	regions *region.Table
}

// NewPrefilter creates a prefilter. A nil table disables region expansion.
func NewPrefilter(rules Rules, regions *region.Table) *Prefilter {
	return &Prefilter{rules: rules, regions: regions}
}

// Check evaluates the hard constraints in order and reports the first failure.
func (p *Prefilter) Check(l *model.Listing, o *model.Opportunity) Decision {
	checks := []func() (RejectReason, string){
		func() (RejectReason, string) { return statusGate(l, o) },
		func() (RejectReason, string) { return geographicGate(l, o, p.rules, p.regions) },
		func() (RejectReason, string) { return sizeGate(l, o, p.rules) },
		func() (RejectReason, string) { return timelineGate(l, o, p.rules) },
	}
	for _, check := range checks {
		if reason, detail := check(); reason != RejectNone {
			return Decision{Reason: reason, Detail: detail}
		}
	}
	return Decision{Pass: true}
}

func statusGate(l *model.Listing, o *model.Opportunity) (RejectReason, string) {
	if !l.IsActive() {
		return RejectInactiveListing, fmt.Sprintf("listing status %q", l.Status)
	}
	if !o.IsActive() {
		return RejectInactiveOpportunity, fmt.Sprintf("opportunity status %q", o.Status)
	}
	return RejectNone, ""
}

// geographicGate passes when the listing state is acceptable to the
// opportunity or the listing lies within the fixed prefilter radius.
func geographicGate(l *model.Listing, o *model.Opportunity, rules Rules, regions *region.Table) (RejectReason, string) {
	states := regions.AcceptableStates(o)
	listingState := region.NormalizeState(l.State)
	if listingState != "" && slices.Contains(states, listingState) {
		return RejectNone, ""
	}
	if d, ok := pairDistance(l, o); ok && d <= rules.RadiusMiles {
		return RejectNone, ""
	}
	return RejectNoGeographicOverlap, fmt.Sprintf("listing state %q not in %v", l.State, states)
}

// sizeGate checks the disclosed area against the tolerance band.
func sizeGate(l *model.Listing, o *model.Opportunity, rules Rules) (RejectReason, string) {
	if l.AvailableSF <= 0 {
		return RejectNoDisclosedArea, "available area not disclosed"
	}
	minSF, maxSF := sizeBand(o)
	avail := float64(l.AvailableSF)
	if minSF > 0 && avail < rules.MinSizeRatio*minSF {
		return RejectBelowSizeTolerance, fmt.Sprintf("%d SF below %.0f SF floor", l.AvailableSF, rules.MinSizeRatio*minSF)
	}
	if maxSF > 0 && avail > rules.MaxSizeRatio*maxSF {
		return RejectAboveSizeTolerance, fmt.Sprintf("%d SF above %.0f SF ceiling", l.AvailableSF, rules.MaxSizeRatio*maxSF)
	}
	return RejectNone, ""
}

// timelineGate rejects space that becomes available too long after the
// required occupancy date.
func timelineGate(l *model.Listing, o *model.Opportunity, rules Rules) (RejectReason, string) {
	if l.AvailableDate == nil || o.OccupancyDate == nil {
		return RejectNone, ""
	}
	limit := o.OccupancyDate.Add(rules.DateGrace)
	if l.AvailableDate.After(limit) {
		return RejectAvailabilityTooLate, fmt.Sprintf("available %s after %s", l.AvailableDate.Format("2006-01-02"), limit.Format("2006-01-02"))
	}
	return RejectNone, ""
}

// sizeBand returns the required [min, max] area. A zero max means unbounded
// and a max below min collapses to min.
func sizeBand(o *model.Opportunity) (float64, float64) {
	minSF, maxSF := float64(o.MinSF), float64(o.MaxSF)
	if maxSF > 0 && maxSF < minSF {
		maxSF = minSF
	}
	return minSF, maxSF
}

// pairDistance returns the haversine distance when both records have a point.
func pairDistance(l *model.Listing, o *model.Opportunity) (float64, bool) {
	if !l.HasCoordinates() || !o.HasCoordinates() {
		return 0, false
	}
	return geospatial.HaversineMiles(*l.Latitude, *l.Longitude, *o.Latitude, *o.Longitude), true
}
