package model

import (
	"time"
)

// Grade is the letter bucket derived from an overall score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// Grades lists every grade from best to worst.
var Grades = []Grade{GradeAPlus, GradeA, GradeB, GradeC, GradeD, GradeF}

// Factor names as persisted in the score breakdown.
const (
	FactorLocation        = "location"
	FactorSpace           = "space"
	FactorBuilding        = "building"
	FactorPricingTimeline = "pricing_timeline"
	FactorExperience      = "experience"
)

// FactorDetails is the rationale attached to a factor score.
type FactorDetails struct {
	Summary string         `json:"summary"`
	Inputs  map[string]any `json:"inputs,omitempty"`
	// Gate names the eligibility constraint that failed, if any.
	Gate string `json:"gate,omitempty"`
}

// MatchFactor is one weighted component of a match score.
type MatchFactor struct {
	Name     string        `json:"name"`
	Score    float64       `json:"score"`
	Weight   float64       `json:"weight"`
	Weighted float64       `json:"weighted"`
	Details  FactorDetails `json:"details"`
}

// GateFailed reports whether the factor tripped a hard eligibility constraint.
func (f MatchFactor) GateFailed() bool {
	return f.Details.Gate != ""
}

// ScoreBreakdown is the persisted shape of the five scoring factors.
type ScoreBreakdown struct {
	Location        MatchFactor `json:"location"`
	Space           MatchFactor `json:"space"`
	Building        MatchFactor `json:"building"`
	PricingTimeline MatchFactor `json:"pricing_timeline"`
	Experience      MatchFactor `json:"experience"`
}

// Factors returns the five factors in canonical order.
func (b ScoreBreakdown) Factors() []MatchFactor {
	return []MatchFactor{b.Location, b.Space, b.Building, b.PricingTimeline, b.Experience}
}

// Gates returns the failed eligibility gates across all factors.
func (b ScoreBreakdown) Gates() []string {
	var gates []string
	for _, f := range b.Factors() {
		if f.GateFailed() {
			gates = append(gates, f.Details.Gate)
		}
	}
	return gates
}

// Match is the persisted outcome for one (listing, opportunity) pair.
type Match struct {
	ID            string         `json:"id,omitempty"`
	ListingID     string         `json:"listing_id"`
	OpportunityID string         `json:"opportunity_id"`
	OverallScore  int            `json:"overall_score"`
	Grade         Grade          `json:"grade"`
	Qualified     bool           `json:"qualified"`
	Competitive   bool           `json:"competitive"`
	Breakdown     ScoreBreakdown `json:"score_breakdown"`
	RunID         string         `json:"run_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// MatchSummary is the lightweight projection of a match used by analytics.
type MatchSummary struct {
	ListingID     string  `json:"listing_id"`
	OpportunityID string  `json:"opportunity_id"`
	OverallScore  int     `json:"overall_score"`
	Grade         Grade   `json:"grade"`
	Qualified     bool    `json:"qualified"`
	Competitive   bool    `json:"competitive"`
	Location      float64 `json:"location"`
	Space         float64 `json:"space"`
	Building      float64 `json:"building"`
	Pricing       float64 `json:"pricing_timeline"`
	Experience    float64 `json:"experience"`
}

// Summary projects a match into a MatchSummary.
func (m *Match) Summary() MatchSummary {
	return MatchSummary{
		ListingID:     m.ListingID,
		OpportunityID: m.OpportunityID,
		OverallScore:  m.OverallScore,
		Grade:         m.Grade,
		Qualified:     m.Qualified,
		Competitive:   m.Competitive,
		Location:      m.Breakdown.Location.Score,
		Space:         m.Breakdown.Space.Score,
		Building:      m.Breakdown.Building.Score,
		Pricing:       m.Breakdown.PricingTimeline.Score,
		Experience:    m.Breakdown.Experience.Score,
	}
}
