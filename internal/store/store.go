// Package store persists listings, opportunities, matches and the batch run log.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/model"
)

// DefaultListLimit caps list queries that do not set a limit.
const DefaultListLimit = 100

// MaxListLimit is the largest page a list query will return.
const MaxListLimit = 1000

// ErrNotFound is returned by writes that target a missing row.
var ErrNotFound = eris.New("store: not found")

// MatchFilter specifies criteria for listing persisted matches.
type MatchFilter struct {
	ListingID     string      `json:"listing_id,omitempty"`
	OpportunityID string      `json:"opportunity_id,omitempty"`
	MinScore      int         `json:"min_score,omitempty"`
	Grade         model.Grade `json:"grade,omitempty"`
	Qualified     *bool       `json:"qualified,omitempty"`
	Competitive   *bool       `json:"competitive,omitempty"`
	Limit         int         `json:"limit,omitempty"`
	Offset        int         `json:"offset,omitempty"`
}

// pageLimit returns the effective limit of the filter.
func (f MatchFilter) pageLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// ListingRepository reads and writes listings.
type ListingRepository interface {
	ListActiveListings(ctx context.Context) ([]model.Listing, error)
	CountActiveListings(ctx context.Context) (int, error)
	SaveListing(ctx context.Context, l *model.Listing) error
}

// OpportunityRepository reads and writes opportunities. Active means status
// active and a response deadline that is unset or not before asOf.
type OpportunityRepository interface {
	ListActiveOpportunities(ctx context.Context, asOf time.Time) ([]model.Opportunity, error)
	CountActiveOpportunities(ctx context.Context, asOf time.Time) (int, error)
	SaveOpportunity(ctx context.Context, o *model.Opportunity) error
}

// MatchRepository persists scored pairs. UpsertMatch is idempotent on
// (listing_id, opportunity_id).
type MatchRepository interface {
	UpsertMatch(ctx context.Context, m *model.Match) (*model.Match, error)
	GetMatch(ctx context.Context, listingID, opportunityID string) (*model.Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]model.Match, error)
	CountMatches(ctx context.Context) (int, error)
	MatchSummaries(ctx context.Context) ([]model.MatchSummary, error)
	DeleteMatchesForListing(ctx context.Context, listingID string) (int, error)
	DeleteMatchesForOpportunity(ctx context.Context, opportunityID string) (int, error)
}

// RunLog records batch run statistics.
type RunLog interface {
	RecordRun(ctx context.Context, stats *model.BatchStats) error
	ListRuns(ctx context.Context, limit int) ([]model.BatchStats, error)
}

// Store is the full persistence interface.
type Store interface {
	ListingRepository
	OpportunityRepository
	MatchRepository
	RunLog

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
