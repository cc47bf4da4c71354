package geospatial

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/lease-match/internal/model"
)

// Score blend between rank and absolute density.
const (
	percentileWeight = 0.6
	saturationWeight = 0.4
)

// DefaultQueryLimit caps the properties read for one neighborhood.
const DefaultQueryLimit = 5000

// DensityOptions configures a DensityScorer.
type DensityOptions struct {
	MaxRadiusMiles      float64
	ReferenceSampleSize int
	ReferenceTTL        time.Duration
	SaturationDensity   float64
	QueryLimit          int
}

func (o DensityOptions) withDefaults() DensityOptions {
	if o.MaxRadiusMiles <= 0 {
		o.MaxRadiusMiles = 100
	}
	if o.ReferenceSampleSize <= 0 {
		o.ReferenceSampleSize = 250
	}
	if o.ReferenceTTL <= 0 {
		o.ReferenceTTL = time.Hour
	}
	if o.SaturationDensity <= 0 {
		o.SaturationDensity = 2.0
	}
	if o.QueryLimit <= 0 {
		o.QueryLimit = DefaultQueryLimit
	}
	return o
}

// DensityScorer computes FederalDensityScore values from an Inventory.
type DensityScorer struct {
	inv   Inventory
	cache *DensityCache
	opts  DensityOptions

	mu        sync.Mutex
	reference map[float64]referenceDist
	// rebuilds collapses concurrent reference builds for one radius.
	rebuilds singleflight.Group

	nowFunc func() time.Time
}

// referenceDist is a sorted sample of densities at one radius.
type referenceDist struct {
	densities []float64
	builtAt   time.Time
}

// NewDensityScorer creates a scorer. cache may be nil to disable caching.
func NewDensityScorer(inv Inventory, cache *DensityCache, opts DensityOptions) *DensityScorer {
	return &DensityScorer{
		inv:       inv,
		cache:     cache,
		opts:      opts.withDefaults(),
		reference: make(map[float64]referenceDist),
		nowFunc:   time.Now,
	}
}

// Cache returns the scorer's cache, possibly nil.
func (s *DensityScorer) Cache() *DensityCache {
	return s.cache
}

// ValidateQuery checks a density query point and radius.
func (s *DensityScorer) ValidateQuery(lat, lng, radiusMiles float64) error {
	if !model.ValidCoordinates(lat, lng) {
		return eris.Errorf("geo: invalid coordinates %.6f,%.6f", lat, lng)
	}
	if radiusMiles <= 0 || radiusMiles > s.opts.MaxRadiusMiles {
		return eris.Errorf("geo: radius %.2f outside (0, %.2f]", radiusMiles, s.opts.MaxRadiusMiles)
	}
	return nil
}

// Score returns the federal density around the point. Results are cached by
// rounded coordinate and radius.
func (s *DensityScorer) Score(ctx context.Context, lat, lng, radiusMiles float64) (*model.FederalDensityScore, error) {
	if err := s.ValidateQuery(lat, lng, radiusMiles); err != nil {
		return nil, err
	}

	if s.cache != nil {
		lat, lng = s.cache.Round(lat), s.cache.Round(lng)
		if hit, ok := s.cache.Get(lat, lng, radiusMiles); ok {
			return &hit, nil
		}
	}

	out, err := s.neighborhood(ctx, lat, lng, radiusMiles)
	if err != nil {
		return nil, err
	}

	if out.TotalProperties > 0 {
		ref, err := s.referenceFor(ctx, radiusMiles)
		if err != nil {
			return nil, err
		}
		out.Percentile = Percentile(ref, out.Density)
		out.Score = blendScore(out.Percentile, out.Density, s.opts.SaturationDensity)
	}
	out.ComputedAt = s.nowFunc().UTC()

	if s.cache != nil {
		s.cache.Put(*out)
	}
	return out, nil
}

// neighborhood counts and sums the inventory within radius of the point.
func (s *DensityScorer) neighborhood(ctx context.Context, lat, lng, radiusMiles float64) (*model.FederalDensityScore, error) {
	var props []model.FederalProperty
	for _, box := range BBoxesAround(lat, lng, radiusMiles) {
		got, err := s.inv.WithinBBox(ctx, box, s.opts.QueryLimit-len(props))
		if err != nil {
			return nil, eris.Wrap(err, "geo: density lookup")
		}
		props = append(props, got...)
		if len(props) >= s.opts.QueryLimit {
			zap.L().Warn("geo: density query hit limit",
				zap.Float64("lat", lat),
				zap.Float64("lng", lng),
				zap.Float64("radius_miles", radiusMiles),
				zap.Int("limit", s.opts.QueryLimit),
			)
			break
		}
	}

	out := &model.FederalDensityScore{Latitude: lat, Longitude: lng, RadiusMiles: radiusMiles}
	for _, p := range props {
		if HaversineMiles(lat, lng, p.Latitude, p.Longitude) > radiusMiles {
			continue
		}
		out.TotalProperties++
		switch p.Ownership {
		case model.OwnershipLeased:
			out.LeasedCount++
		case model.OwnershipOwned:
			out.OwnedCount++
		}
		out.TotalRSF += p.RentableSF
		out.VacantRSF += p.VacantSF
	}

	area := CircleAreaSqMiles(radiusMiles)
	out.Density = float64(out.TotalProperties) / area
	out.AreaDensity = out.TotalRSF / area
	return out, nil
}

// referenceFor returns the sorted reference densities for a radius, rebuilding
// when the cached distribution is older than the reference TTL. Concurrent
// callers share one rebuild.
func (s *DensityScorer) referenceFor(ctx context.Context, radiusMiles float64) ([]float64, error) {
	if ref, ok := s.freshReference(radiusMiles); ok {
		return ref, nil
	}

	v, err, _ := s.rebuilds.Do(strconv.FormatFloat(radiusMiles, 'f', -1, 64), func() (any, error) {
		if ref, ok := s.freshReference(radiusMiles); ok {
			return ref, nil
		}
		return s.buildReference(ctx, radiusMiles)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

func (s *DensityScorer) freshReference(radiusMiles float64) ([]float64, bool) {
	s.mu.Lock()
	ref, ok := s.reference[radiusMiles]
	s.mu.Unlock()
	if !ok || s.nowFunc().Sub(ref.builtAt) > s.opts.ReferenceTTL {
		return nil, false
	}
	return ref.densities, true
}

func (s *DensityScorer) buildReference(ctx context.Context, radiusMiles float64) ([]float64, error) {
	now := s.nowFunc()
	points, err := s.inv.SamplePoints(ctx, s.opts.ReferenceSampleSize)
	if err != nil {
		return nil, eris.Wrap(err, "geo: reference sample")
	}

	densities := make([]float64, 0, len(points))
	for _, pt := range points {
		n, err := s.neighborhood(ctx, pt.Lat, pt.Lng, radiusMiles)
		if err != nil {
			return nil, err
		}
		densities = append(densities, n.Density)
	}
	sort.Float64s(densities)

	s.mu.Lock()
	s.reference[radiusMiles] = referenceDist{densities: densities, builtAt: now}
	s.mu.Unlock()

	zap.L().Debug("geo: reference distribution built",
		zap.Float64("radius_miles", radiusMiles),
		zap.Int("samples", len(densities)),
	)
	return densities, nil
}

// Reset drops cached scores and reference distributions. Called after an
// inventory import.
func (s *DensityScorer) Reset() {
	s.mu.Lock()
	s.reference = make(map[float64]referenceDist)
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Percentile returns the mid-rank percentile of v within the sorted sample:
// (below + 0.5 × equal) / n × 100. An empty sample yields 0.
func Percentile(sorted []float64, v float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	below := sort.SearchFloat64s(sorted, v)
	above := sort.Search(n, func(i int) bool { return sorted[i] > v })
	equal := above - below
	return (float64(below) + 0.5*float64(equal)) / float64(n) * 100
}

// blendScore mixes the rank with a saturating absolute term so that the score
// grows with density and levels off near the saturation point.
func blendScore(percentile, density, saturation float64) int {
	abs := 100 * (1 - math.Exp(-density/saturation))
	score := math.Round(percentileWeight*percentile + saturationWeight*abs)
	return int(math.Max(0, math.Min(100, score)))
}
