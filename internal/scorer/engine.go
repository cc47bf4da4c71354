package scorer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/region"
)

// DensityLookup returns the federal density around a point.
// *geospatial.DensityScorer satisfies it.
type DensityLookup interface {
	Score(ctx context.Context, lat, lng, radiusMiles float64) (*model.FederalDensityScore, error)
}

// Engine scores listing/opportunity pairs.
type Engine struct {
	cfg       Config
	prefilter *Prefilter
	density   DensityLookup
	regions   *region.Table
}

// NewEngine validates cfg and builds an engine. density may be nil, in which
// case the density component of the location factor is always 0.
func NewEngine(cfg Config, density DensityLookup, regions *region.Table) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		prefilter: NewPrefilter(cfg.Rules, regions),
		density:   density,
		regions:   regions,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Prefilter returns the engine's prefilter.
func (e *Engine) Prefilter() *Prefilter {
	return e.prefilter
}

// Evaluate runs the prefilter and, when the pair passes, scores it. A
// rejected pair returns a nil match and the rejecting decision.
func (e *Engine) Evaluate(ctx context.Context, l *model.Listing, o *model.Opportunity) (*model.Match, Decision, error) {
	d := e.prefilter.Check(l, o)
	if !d.Pass {
		return nil, d, nil
	}
	m, err := e.Score(ctx, l, o)
	return m, d, err
}

// Score computes the full breakdown for a pair without prefiltering. Hard
// constraints still apply as gates, so a pair the prefilter would reject is
// never qualified.
func (e *Engine) Score(ctx context.Context, l *model.Listing, o *model.Opportunity) (*model.Match, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var extraGates []string
	if reason, _ := statusGate(l, o); reason != RejectNone {
		extraGates = append(extraGates, string(reason))
	}

	density := e.lookupDensity(ctx, l)

	b := model.ScoreBreakdown{
		Location:        ScoreLocation(l, o, density, e.cfg, e.regions),
		Space:           ScoreSpace(l, o, e.cfg.Rules),
		Building:        ScoreBuilding(l, o),
		PricingTimeline: ScorePricingTimeline(l, o, e.cfg.Rules),
		Experience:      ScoreExperience(l),
	}
	ApplyWeights(&b, e.cfg.Weights)

	res, err := Aggregate(b, e.cfg.Thresholds, extraGates...)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: aggregate %s/%s", l.ID, o.ID)
	}

	return &model.Match{
		ListingID:     l.ID,
		OpportunityID: o.ID,
		OverallScore:  res.Overall,
		Grade:         res.Grade,
		Qualified:     res.Qualified,
		Competitive:   res.Competitive,
		Breakdown:     res.Breakdown,
	}, nil
}

func (e *Engine) lookupDensity(ctx context.Context, l *model.Listing) *model.FederalDensityScore {
	if e.density == nil {
		return nil
	}
	d, err := e.density.Score(ctx, *l.Latitude, *l.Longitude, e.cfg.DensityRadiusMiles)
	if err != nil {
		zap.L().Warn("scorer: density lookup failed, scoring without it",
			zap.String("listing_id", l.ID),
			zap.Error(err),
		)
		return nil
	}
	return d
}
