// Package model defines the domain types shared by the matching engine.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ListingStatus is the activation state of a listing.
type ListingStatus string

const (
	ListingDraft    ListingStatus = "draft"
	ListingActive   ListingStatus = "active"
	ListingArchived ListingStatus = "archived"
)

// BuildingClass is the commercial building classification.
type BuildingClass string

const (
	ClassA BuildingClass = "A"
	ClassB BuildingClass = "B"
	ClassC BuildingClass = "C"
)

// Rank orders classes from best (A=3) to worst (C=1). Unknown classes rank 0.
func (c BuildingClass) Rank() int {
	switch c {
	case ClassA:
		return 3
	case ClassB:
		return 2
	case ClassC:
		return 1
	default:
		return 0
	}
}

// Valid reports whether c is one of the known classes.
func (c BuildingClass) Valid() bool {
	return c.Rank() > 0
}

// ErrMalformedRecord marks a listing or opportunity that cannot be scored.
var ErrMalformedRecord = eris.New("malformed record")

// Listing is a commercial property offered for lease.
type Listing struct {
	ID                    string        `json:"id"`
	OwnerID               string        `json:"owner_id,omitempty"`
	Title                 string        `json:"title"`
	Address               string        `json:"address,omitempty"`
	City                  string        `json:"city"`
	State                 string        `json:"state"`
	Zip                   string        `json:"zip,omitempty"`
	Latitude              *float64      `json:"latitude,omitempty"`
	Longitude             *float64      `json:"longitude,omitempty"`
	TotalSF               int           `json:"total_sf"`
	AvailableSF           int           `json:"available_sf"`
	BuildingClass         BuildingClass `json:"building_class,omitempty"`
	YearBuilt             int           `json:"year_built,omitempty"`
	ADAAccessible         bool          `json:"ada_accessible"`
	ParkingSpaces         int           `json:"parking_spaces"`
	BackupPower           bool          `json:"backup_power"`
	SecurityLevel         int           `json:"security_level,omitempty"`
	Certifications        []string      `json:"certifications,omitempty"`
	AskingRatePerSF       float64       `json:"asking_rate_per_sf,omitempty"`
	AvailableDate         *time.Time    `json:"available_date,omitempty"`
	PriorGovernmentLeases int           `json:"prior_government_leases"`
	ConvertedMatches      int           `json:"converted_matches"`
	Status                ListingStatus `json:"status"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// IsActive reports whether the listing is published.
func (l *Listing) IsActive() bool {
	return l.Status == ListingActive
}

// HasCoordinates reports whether both coordinates are present.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Validate reports why the listing cannot be scored, wrapping ErrMalformedRecord.
func (l *Listing) Validate() error {
	if l.ID == "" {
		return eris.Wrap(ErrMalformedRecord, "listing: missing id")
	}
	if !l.HasCoordinates() {
		return eris.Wrapf(ErrMalformedRecord, "listing %s: missing coordinates", l.ID)
	}
	if !ValidCoordinates(*l.Latitude, *l.Longitude) {
		return eris.Wrapf(ErrMalformedRecord, "listing %s: coordinates out of range (%f, %f)", l.ID, *l.Latitude, *l.Longitude)
	}
	if l.AvailableSF < 0 || l.TotalSF < 0 {
		return eris.Wrapf(ErrMalformedRecord, "listing %s: negative area", l.ID)
	}
	return nil
}

// ValidCoordinates reports whether lat/lng are inside WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
