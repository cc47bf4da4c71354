// Package analytics summarizes persisted matches, run history and density
// lookups for reporting.
package analytics

import (
	"cmp"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/sells-group/lease-match/internal/geospatial"
	"github.com/sells-group/lease-match/internal/model"
)

// histogramBuckets is the number of equal-width score buckets over [0, 100].
const histogramBuckets = 10

// Bucket is one histogram bin. Max is inclusive only for the last bin.
type Bucket struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Count int `json:"count"`
}

// FactorMeans holds the mean raw score of each factor.
type FactorMeans struct {
	Location        float64 `json:"location"`
	Space           float64 `json:"space"`
	Building        float64 `json:"building"`
	PricingTimeline float64 `json:"pricing_timeline"`
	Experience      float64 `json:"experience"`
}

// ScoreReport describes the distribution of overall scores.
type ScoreReport struct {
	Count       int                 `json:"count"`
	Mean        float64             `json:"mean"`
	Median      float64             `json:"median"`
	Min         int                 `json:"min"`
	Max         int                 `json:"max"`
	Histogram   []Bucket            `json:"histogram"`
	Grades      map[model.Grade]int `json:"grades"`
	Qualified   int                 `json:"qualified"`
	Competitive int                 `json:"competitive"`
	Factors     FactorMeans         `json:"factors"`
}

// ScoreDistribution summarizes match scores.
func ScoreDistribution(summaries []model.MatchSummary) ScoreReport {
	rep := ScoreReport{
		Histogram: newHistogram(),
		Grades:    make(map[model.Grade]int),
	}
	if len(summaries) == 0 {
		return rep
	}

	scores := make([]int, 0, len(summaries))
	var total float64
	var f FactorMeans
	for _, s := range summaries {
		scores = append(scores, s.OverallScore)
		total += float64(s.OverallScore)
		rep.Histogram[bucketIndex(float64(s.OverallScore))].Count++
		rep.Grades[s.Grade]++
		if s.Qualified {
			rep.Qualified++
		}
		if s.Competitive {
			rep.Competitive++
		}
		f.Location += s.Location
		f.Space += s.Space
		f.Building += s.Building
		f.PricingTimeline += s.Pricing
		f.Experience += s.Experience
	}
	slices.Sort(scores)

	n := float64(len(summaries))
	rep.Count = len(summaries)
	rep.Mean = round2(total / n)
	rep.Median = medianInts(scores)
	rep.Min = scores[0]
	rep.Max = scores[len(scores)-1]
	rep.Factors = FactorMeans{
		Location:        round2(f.Location / n),
		Space:           round2(f.Space / n),
		Building:        round2(f.Building / n),
		PricingTimeline: round2(f.PricingTimeline / n),
		Experience:      round2(f.Experience / n),
	}
	return rep
}

// RunEfficiency is the prefilter and match yield of one run.
type RunEfficiency struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Pairs      int       `json:"pairs"`
	Skipped    int       `json:"skipped"`
	SkipRate   float64   `json:"skip_rate"`
	Scored     int       `json:"scored"`
	Matched    int       `json:"matched"`
	MatchRate  float64   `json:"match_rate"`
	Failed     int       `json:"failed"`
	DurationMs int64     `json:"duration_ms"`
	Partial    bool      `json:"partial"`
}

// Efficiency aggregates RunEfficiency across runs.
type Efficiency struct {
	Runs           int     `json:"runs"`
	FailedRuns     int     `json:"failed_runs"`
	PartialRuns    int     `json:"partial_runs"`
	Pairs          int     `json:"pairs"`
	Skipped        int     `json:"skipped"`
	SkipRate       float64 `json:"skip_rate"`
	Scored         int     `json:"scored"`
	Matched        int     `json:"matched"`
	MatchRate      float64 `json:"match_rate"`
	Failed         int     `json:"failed"`
	MeanDurationMs float64 `json:"mean_duration_ms"`
}

// PrefilterReport holds per-run and aggregate efficiency.
type PrefilterReport struct {
	Runs    []RunEfficiency `json:"runs"`
	Overall Efficiency      `json:"overall"`
}

// PrefilterEfficiency measures how much work the prefilter saves and how
// much of the scored work turns into matches.
func PrefilterEfficiency(runs []model.BatchStats) PrefilterReport {
	rep := PrefilterReport{Runs: make([]RunEfficiency, 0, len(runs))}

	var overall Efficiency
	var totalDuration int64
	for _, r := range runs {
		rep.Runs = append(rep.Runs, RunEfficiency{
			RunID:      r.RunID,
			StartedAt:  r.StartedAt,
			Pairs:      r.Pairs,
			Skipped:    r.Skipped,
			SkipRate:   ratio(r.Skipped, r.Pairs),
			Scored:     r.Scored,
			Matched:    r.Matched,
			MatchRate:  ratio(r.Matched, r.Scored),
			Failed:     r.Failed,
			DurationMs: r.DurationMs,
			Partial:    r.Partial,
		})

		overall.Pairs += r.Pairs
		overall.Skipped += r.Skipped
		overall.Scored += r.Scored
		overall.Matched += r.Matched
		overall.Failed += r.Failed
		totalDuration += r.DurationMs
		if r.Status == model.RunFailed {
			overall.FailedRuns++
		}
		if r.Partial {
			overall.PartialRuns++
		}
	}

	overall.Runs = len(runs)
	overall.SkipRate = ratio(overall.Skipped, overall.Pairs)
	overall.MatchRate = ratio(overall.Matched, overall.Scored)
	if len(runs) > 0 {
		overall.MeanDurationMs = round2(float64(totalDuration) / float64(len(runs)))
	}
	rep.Overall = overall
	return rep
}

// Performer aggregates the matches of one listing or opportunity.
type Performer struct {
	ID        string  `json:"id"`
	Matches   int     `json:"matches"`
	MeanScore float64 `json:"mean_score"`
	BestScore int     `json:"best_score"`
	Qualified int     `json:"qualified"`
}

// TopReport lists the best listings and opportunities.
type TopReport struct {
	Listings      []Performer `json:"listings"`
	Opportunities []Performer `json:"opportunities"`
}

// TopPerformers ranks listings and opportunities by mean overall score; ties
// go to the one with more qualified matches, then to the lower id.
func TopPerformers(summaries []model.MatchSummary, n int) TopReport {
	listings := make(map[string]*performerAcc)
	opps := make(map[string]*performerAcc)
	for _, s := range summaries {
		accumulate(listings, s.ListingID, s)
		accumulate(opps, s.OpportunityID, s)
	}
	return TopReport{
		Listings:      rank(listings, n),
		Opportunities: rank(opps, n),
	}
}

type performerAcc struct {
	total     int
	matches   int
	best      int
	qualified int
}

func accumulate(m map[string]*performerAcc, id string, s model.MatchSummary) {
	a, ok := m[id]
	if !ok {
		a = &performerAcc{}
		m[id] = a
	}
	a.total += s.OverallScore
	a.matches++
	a.best = max(a.best, s.OverallScore)
	if s.Qualified {
		a.qualified++
	}
}

func rank(m map[string]*performerAcc, n int) []Performer {
	out := make([]Performer, 0, len(m))
	for id, a := range m {
		out = append(out, Performer{
			ID:        id,
			Matches:   a.matches,
			MeanScore: round2(float64(a.total) / float64(a.matches)),
			BestScore: a.best,
			Qualified: a.qualified,
		})
	}
	slices.SortFunc(out, func(a, b Performer) int {
		if c := cmp.Compare(b.MeanScore, a.MeanScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Qualified, a.Qualified); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DensityReport summarizes the cached density lookups.
type DensityReport struct {
	Entries        int                   `json:"entries"`
	MeanScore      float64               `json:"mean_score"`
	MaxScore       int                   `json:"max_score"`
	MeanPercentile float64               `json:"mean_percentile"`
	Histogram      []Bucket              `json:"histogram"`
	Cache          geospatial.CacheStats `json:"cache"`
}

// DensityDistribution summarizes density scores alongside cache statistics.
func DensityDistribution(entries []model.FederalDensityScore, stats geospatial.CacheStats) DensityReport {
	rep := DensityReport{
		Entries:   len(entries),
		Histogram: newHistogram(),
		Cache:     stats,
	}
	if len(entries) == 0 {
		return rep
	}

	var total, pct float64
	for _, e := range entries {
		total += float64(e.Score)
		pct += e.Percentile
		rep.MaxScore = max(rep.MaxScore, e.Score)
		rep.Histogram[bucketIndex(float64(e.Score))].Count++
	}
	n := float64(len(entries))
	rep.MeanScore = round2(total / n)
	rep.MeanPercentile = round2(pct / n)
	return rep
}

func newHistogram() []Bucket {
	width := 100 / histogramBuckets
	out := make([]Bucket, histogramBuckets)
	for i := range out {
		out[i] = Bucket{Min: i * width, Max: (i + 1) * width}
	}
	return out
}

// bucketIndex places v in [0, 100] into a bin; 100 lands in the last one.
func bucketIndex(v float64) int {
	i := int(v) / (100 / histogramBuckets)
	return max(0, min(histogramBuckets-1, i))
}

func medianInts(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*10000) / 10000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// sortStates orders inventory rows by property count, largest first.
func sortStates(rows []geospatial.StateSummary) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Properties > rows[j].Properties
	})
}
