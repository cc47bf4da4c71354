package model

import "time"

// Ownership distinguishes leased from government-owned inventory.
type Ownership string

const (
	OwnershipLeased Ownership = "leased"
	OwnershipOwned  Ownership = "owned"
)

// FederalProperty is one government-occupied property from the federal
// real-property inventory.
type FederalProperty struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	Address          string    `json:"address,omitempty"`
	City             string    `json:"city,omitempty"`
	State            string    `json:"state,omitempty"`
	Zip              string    `json:"zip,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Ownership        Ownership `json:"ownership"`
	RentableSF       float64   `json:"rentable_sf"`
	VacantSF         float64   `json:"vacant_sf"`
	Agency           string    `json:"agency,omitempty"`
	ConstructionYear int       `json:"construction_year,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FederalDensityScore summarizes federal presence around a point.
type FederalDensityScore struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	RadiusMiles     float64   `json:"radius_miles"`
	TotalProperties int       `json:"total_properties"`
	LeasedCount     int       `json:"leased_count"`
	OwnedCount      int       `json:"owned_count"`
	TotalRSF        float64   `json:"total_rsf"`
	VacantRSF       float64   `json:"vacant_rsf"`
	Density         float64   `json:"density"`
	AreaDensity     float64   `json:"area_density"`
	Percentile      float64   `json:"percentile"`
	Score           int       `json:"score"`
	ComputedAt      time.Time `json:"computed_at"`
}
