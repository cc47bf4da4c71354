package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// OpportunityStatus is the activation state of a solicitation.
type OpportunityStatus string

const (
	OpportunityDraft     OpportunityStatus = "draft"
	OpportunityActive    OpportunityStatus = "active"
	OpportunityAwarded   OpportunityStatus = "awarded"
	OpportunityCancelled OpportunityStatus = "cancelled"
	OpportunityArchived  OpportunityStatus = "archived"
)

// Opportunity is a government requirement for leased space (an RLP).
type Opportunity struct {
	ID                     string            `json:"id"`
	SolicitationNumber     string            `json:"solicitation_number,omitempty"`
	Title                  string            `json:"title"`
	Agency                 string            `json:"agency,omitempty"`
	City                   string            `json:"city,omitempty"`
	State                  string            `json:"state"`
	Region                 string            `json:"region,omitempty"`
	AcceptableStates       []string          `json:"acceptable_states,omitempty"`
	Latitude               *float64          `json:"latitude,omitempty"`
	Longitude              *float64          `json:"longitude,omitempty"`
	DelineatedRadiusMiles  float64           `json:"delineated_radius_miles,omitempty"`
	MinSF                  int               `json:"min_sf"`
	MaxSF                  int               `json:"max_sf"`
	BuildingClasses        []BuildingClass   `json:"building_classes,omitempty"`
	RequiresADA            bool              `json:"requires_ada"`
	RequiresBackupPower    bool              `json:"requires_backup_power"`
	MinSecurityLevel       int               `json:"min_security_level,omitempty"`
	MinParkingSpaces       int               `json:"min_parking_spaces,omitempty"`
	RequiredCertifications []string          `json:"required_certifications,omitempty"`
	MaxRatePerSF           float64           `json:"max_rate_per_sf,omitempty"`
	OccupancyDate          *time.Time        `json:"occupancy_date,omitempty"`
	ResponseDeadline       *time.Time        `json:"response_deadline,omitempty"`
	Status                 OpportunityStatus `json:"status"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// IsActive reports whether the solicitation is open.
func (o *Opportunity) IsActive() bool {
	return o.Status == OpportunityActive
}

// Expired reports whether the response deadline has passed.
func (o *Opportunity) Expired(now time.Time) bool {
	return o.ResponseDeadline != nil && o.ResponseDeadline.Before(now)
}

// HasCoordinates reports whether the target point is present.
func (o *Opportunity) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// Validate reports why the opportunity cannot be scored, wrapping ErrMalformedRecord.
func (o *Opportunity) Validate() error {
	if o.ID == "" {
		return eris.Wrap(ErrMalformedRecord, "opportunity: missing id")
	}
	if (o.Latitude == nil) != (o.Longitude == nil) {
		return eris.Wrapf(ErrMalformedRecord, "opportunity %s: partial coordinates", o.ID)
	}
	if o.HasCoordinates() && !ValidCoordinates(*o.Latitude, *o.Longitude) {
		return eris.Wrapf(ErrMalformedRecord, "opportunity %s: coordinates out of range", o.ID)
	}
	if !o.HasCoordinates() && o.State == "" && o.Region == "" && len(o.AcceptableStates) == 0 {
		return eris.Wrapf(ErrMalformedRecord, "opportunity %s: no target location", o.ID)
	}
	if o.MinSF < 0 || o.MaxSF < 0 {
		return eris.Wrapf(ErrMalformedRecord, "opportunity %s: negative area bound", o.ID)
	}
	if o.MaxSF > 0 && o.MaxSF < o.MinSF {
		return eris.Wrapf(ErrMalformedRecord, "opportunity %s: max_sf %d below min_sf %d", o.ID, o.MaxSF, o.MinSF)
	}
	return nil
}
