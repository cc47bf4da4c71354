package analytics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/geospatial"
	"github.com/sells-group/lease-match/internal/model"
)

// DefaultRunWindow is the number of recent runs PrefilterReport covers.
const DefaultRunWindow = 50

// MatchSource provides persisted match projections.
type MatchSource interface {
	MatchSummaries(ctx context.Context) ([]model.MatchSummary, error)
}

// RunSource provides the batch run log.
type RunSource interface {
	ListRuns(ctx context.Context, limit int) ([]model.BatchStats, error)
}

// DensitySource exposes cached density lookups. *geospatial.DensityCache
// satisfies it.
type DensitySource interface {
	Entries() []model.FederalDensityScore
	Stats() geospatial.CacheStats
}

// Service computes reports from the repositories.
type Service struct {
	matches   MatchSource
	runs      RunSource
	density   DensitySource
	inventory geospatial.Inventory
}

// NewService creates an analytics service. density and inventory may be nil.
func NewService(matches MatchSource, runs RunSource, density DensitySource, inventory geospatial.Inventory) *Service {
	return &Service{matches: matches, runs: runs, density: density, inventory: inventory}
}

// Scores returns the score distribution across all persisted matches.
func (s *Service) Scores(ctx context.Context) (*ScoreReport, error) {
	summaries, err := s.matches.MatchSummaries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load match summaries")
	}
	rep := ScoreDistribution(summaries)
	return &rep, nil
}

// Prefilter returns efficiency over the most recent runs.
func (s *Service) Prefilter(ctx context.Context, limit int) (*PrefilterReport, error) {
	if limit <= 0 {
		limit = DefaultRunWindow
	}
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: list runs")
	}
	rep := PrefilterEfficiency(runs)
	return &rep, nil
}

// Top returns the n best listings and opportunities.
func (s *Service) Top(ctx context.Context, n int) (*TopReport, error) {
	summaries, err := s.matches.MatchSummaries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load match summaries")
	}
	rep := TopPerformers(summaries, n)
	return &rep, nil
}

// Density summarizes the density cache. Without a cache the report is empty.
func (s *Service) Density() *DensityReport {
	if s.density == nil {
		rep := DensityDistribution(nil, geospatial.CacheStats{})
		return &rep
	}
	rep := DensityDistribution(s.density.Entries(), s.density.Stats())
	return &rep
}

// InventoryReport summarizes the federal inventory by state.
type InventoryReport struct {
	TotalProperties int                       `json:"total_properties"`
	States          []geospatial.StateSummary `json:"states"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}

// Inventory returns per-state federal inventory totals, largest first.
func (s *Service) Inventory(ctx context.Context) (*InventoryReport, error) {
	if s.inventory == nil {
		return nil, eris.New("analytics: no federal inventory configured")
	}
	rows, err := geospatial.Summarize(ctx, s.inventory)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: inventory")
	}
	sortStates(rows)

	rep := &InventoryReport{States: rows, GeneratedAt: time.Now().UTC()}
	for _, r := range rows {
		rep.TotalProperties += r.Properties
	}
	if rep.States == nil {
		rep.States = []geospatial.StateSummary{}
	}
	return rep, nil
}
