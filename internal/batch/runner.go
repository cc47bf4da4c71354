// Package batch orchestrates a full matching pass over active listings and
// opportunities.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lease-match/internal/config"
	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/resilience"
	"github.com/sells-group/lease-match/internal/scorer"
)

var (
	// ErrRunInProgress is returned when a run is requested while another is
	// still executing in this process.
	ErrRunInProgress = eris.New("batch: run already in progress")

	// ErrInvalidMinScore means the persistence cutoff is outside [0, 100].
	ErrInvalidMinScore = eris.New("batch: min score must be between 0 and 100")
)

// Defaults applied when Options fields are zero.
const (
	DefaultWorkers      = 10
	DefaultRunTimeout   = 240 * time.Second
	DefaultMaxErrors    = 200
	DefaultWriteTimeout = 30 * time.Second
)

// Store is the persistence the runner needs. store.Store satisfies it.
type Store interface {
	ListActiveListings(ctx context.Context) ([]model.Listing, error)
	ListActiveOpportunities(ctx context.Context, asOf time.Time) ([]model.Opportunity, error)
	UpsertMatch(ctx context.Context, m *model.Match) (*model.Match, error)
	RecordRun(ctx context.Context, stats *model.BatchStats) error
}

// Evaluator prefilters and scores one pair. *scorer.Engine satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, l *model.Listing, o *model.Opportunity) (*model.Match, scorer.Decision, error)
	Config() scorer.Config
}

// Options tunes a Runner.
type Options struct {
	Workers      int
	RunTimeout   time.Duration
	MaxErrors    int
	WriteTimeout time.Duration
	Retry        resilience.RetryConfig
	Breaker      resilience.CircuitBreakerConfig
}

// OptionsFromConfig maps batch configuration onto runner options.
func OptionsFromConfig(cfg config.BatchConfig) Options {
	retry, breaker := resilience.FromBatchConfig(cfg)
	return Options{
		Workers:    cfg.Workers,
		RunTimeout: cfg.RunTimeout(),
		MaxErrors:  cfg.MaxErrors,
		Retry:      retry,
		Breaker:    breaker,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = DefaultRunTimeout
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = DefaultMaxErrors
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = resilience.DefaultRetryConfig()
	}
	if o.Retry.OnRetry == nil {
		o.Retry.OnRetry = resilience.RetryLogger("batch", "upsert_match")
	}
	return o
}

// Runner executes batch runs. One run at a time per Runner.
type Runner struct {
	store  Store
	engine Evaluator
	opts   Options

	mu sync.Mutex

	statusMu sync.RWMutex
	status   model.RunStatus

	nowFunc func() time.Time
}

// NewRunner creates a runner.
func NewRunner(st Store, engine Evaluator, opts Options) *Runner {
	return &Runner{
		store:   st,
		engine:  engine,
		opts:    opts.withDefaults(),
		status:  model.RunIdle,
		nowFunc: time.Now,
	}
}

// Status returns the state of the current or most recent run.
func (r *Runner) Status() model.RunStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

func (r *Runner) setStatus(run *runState, s model.RunStatus) {
	r.statusMu.Lock()
	r.status = s
	r.statusMu.Unlock()
	run.setStatus(s)
}

// RunBatch scores every active listing against every active, unexpired
// opportunity and upserts pairs scoring at least minScore.
//
// Per-pair faults are collected into the stats and do not stop the run. A
// match write that still fails after retries fails the run. When the run
// budget elapses no new pairs start, in-flight pairs complete, and the stats
// come back with Partial set. The returned stats are never nil unless the
// error is ErrRunInProgress.
func (r *Runner) RunBatch(ctx context.Context, minScore int) (*model.BatchStats, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run := newRunState(uuid.New().String(), minScore, r.nowFunc().UTC(), r.opts.MaxErrors)
	log := zap.L().With(zap.String("component", "batch"), zap.String("run_id", run.id))
	r.setStatus(run, model.RunIdle)

	if err := r.validate(minScore); err != nil {
		return r.finish(ctx, run, log, eris.Wrap(err, "batch: configuration"))
	}

	r.setStatus(run, model.RunLoading)
	listings, opps, err := r.load(ctx, run.startedAt)
	if err != nil {
		return r.finish(ctx, run, log, err)
	}
	run.setInputs(len(listings), len(opps))

	log.Info("batch: run started",
		zap.Int("listings", len(listings)),
		zap.Int("opportunities", len(opps)),
		zap.Int("min_score", minScore),
		zap.Int("workers", r.opts.Workers),
	)

	budgetCtx, cancel := context.WithTimeout(ctx, r.opts.RunTimeout)
	defer cancel()

	r.setStatus(run, model.RunScoring)
	guard := resilience.NewGuard(r.opts.Retry, r.opts.Breaker)

	g, gctx := errgroup.WithContext(budgetCtx)
	g.SetLimit(r.opts.Workers)

schedule:
	for i := range listings {
		for j := range opps {
			if gctx.Err() != nil {
				break schedule
			}
			l, o := &listings[i], &opps[j]
			g.Go(func() error {
				return r.evaluatePair(gctx, run, guard, l, o, minScore)
			})
		}
	}

	r.setStatus(run, model.RunPersisting)
	runErr := g.Wait()

	if runErr == nil {
		switch {
		case ctx.Err() != nil:
			runErr = eris.Wrap(ctx.Err(), "batch: run cancelled")
		case budgetCtx.Err() != nil:
			run.markPartial(r.opts.RunTimeout)
			log.Warn("batch: run budget exceeded", zap.Duration("budget", r.opts.RunTimeout))
		}
	}
	return r.finish(ctx, run, log, runErr)
}

func (r *Runner) validate(minScore int) error {
	if minScore < 0 || minScore > 100 {
		return eris.Wrapf(ErrInvalidMinScore, "got %d", minScore)
	}
	return scorer.ValidateConfig(r.engine.Config())
}

func (r *Runner) load(ctx context.Context, asOf time.Time) ([]model.Listing, []model.Opportunity, error) {
	listings, err := r.store.ListActiveListings(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "batch: load listings")
	}
	opps, err := r.store.ListActiveOpportunities(ctx, asOf)
	if err != nil {
		return nil, nil, eris.Wrap(err, "batch: load opportunities")
	}
	return listings, opps, nil
}

// evaluatePair runs one pair to completion. Only a persistence failure is
// returned; everything else is recorded on the run. A started pair finishes
// on a detached context so the budget never leaves half-written work.
func (r *Runner) evaluatePair(ctx context.Context, run *runState, guard *resilience.Guard, l *model.Listing, o *model.Opportunity, minScore int) (err error) {
	if ctx.Err() != nil {
		return nil
	}
	work := context.WithoutCancel(ctx)

	// counted is set once the pair lands in skipped or scored.
	counted := false
	defer func() {
		if p := recover(); p != nil {
			if !counted {
				run.scoring()
			}
			zap.L().Error("batch: scorer panic",
				zap.String("listing_id", l.ID),
				zap.String("opportunity_id", o.ID),
				zap.Any("panic", p),
			)
			run.pairFailed(fmt.Sprintf("listing %s / opportunity %s: panic: %v", l.ID, o.ID, p))
			err = nil
		}
	}()

	m, decision, evalErr := r.engine.Evaluate(work, l, o)
	if evalErr == nil && !decision.Pass {
		counted = true
		run.skipped()
		return nil
	}
	counted = true
	run.scoring()
	if evalErr != nil {
		run.pairFailed(fmt.Sprintf("listing %s / opportunity %s: %v", l.ID, o.ID, evalErr))
		return nil
	}
	run.processed()

	if m.OverallScore < minScore {
		return nil
	}
	m.RunID = run.id

	wctx, cancel := context.WithTimeout(work, r.opts.WriteTimeout)
	defer cancel()
	if _, werr := resilience.Call(wctx, guard, func(ctx context.Context) (*model.Match, error) {
		return r.store.UpsertMatch(ctx, m)
	}); werr != nil {
		return eris.Wrapf(werr, "batch: persist match %s/%s", l.ID, o.ID)
	}
	run.matched()
	return nil
}

// finish stamps the terminal state, records the run and logs the outcome.
func (r *Runner) finish(ctx context.Context, run *runState, log *zap.Logger, runErr error) (*model.BatchStats, error) {
	status := model.RunDone
	if runErr != nil {
		status = model.RunFailed
	}
	r.setStatus(run, status)
	stats := run.snapshot(r.nowFunc().UTC(), runErr)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.WriteTimeout)
	defer cancel()
	if err := r.store.RecordRun(rctx, stats); err != nil {
		log.Warn("batch: record run failed", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("status", string(stats.Status)),
		zap.Int("pairs", stats.Pairs),
		zap.Int("skipped", stats.Skipped),
		zap.Int("processed", stats.Processed),
		zap.Int("matched", stats.Matched),
		zap.Int("failed", stats.Failed),
		zap.Bool("partial", stats.Partial),
		zap.Int64("duration_ms", stats.DurationMs),
	}
	if runErr != nil {
		log.Error("batch: run failed", append(fields, zap.Error(runErr))...)
		return stats, runErr
	}
	log.Info("batch: run complete", fields...)
	return stats, nil
}
