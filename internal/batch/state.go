package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/sells-group/lease-match/internal/model"
)

// runState accumulates counters for one run. Workers update it concurrently.
type runState struct {
	mu sync.Mutex

	id        string
	minScore  int
	startedAt time.Time
	maxErrors int

	status        model.RunStatus
	listings      int
	opportunities int
	pairs         int
	skip          int
	scored        int
	proc          int
	match         int
	failed        int
	errs          []string
	truncated     int
	partial       bool
}

func newRunState(id string, minScore int, startedAt time.Time, maxErrors int) *runState {
	return &runState{
		id:        id,
		minScore:  minScore,
		startedAt: startedAt,
		maxErrors: maxErrors,
		status:    model.RunIdle,
	}
}

func (s *runState) setStatus(st model.RunStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *runState) setInputs(listings, opps int) {
	s.mu.Lock()
	s.listings, s.opportunities = listings, opps
	s.pairs = listings * opps
	s.mu.Unlock()
}

func (s *runState) skipped() {
	s.mu.Lock()
	s.skip++
	s.mu.Unlock()
}

func (s *runState) scoring() {
	s.mu.Lock()
	s.scored++
	s.mu.Unlock()
}

func (s *runState) processed() {
	s.mu.Lock()
	s.proc++
	s.mu.Unlock()
}

func (s *runState) matched() {
	s.mu.Lock()
	s.match++
	s.mu.Unlock()
}

func (s *runState) pairFailed(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.appendError(msg)
}

// appendError keeps at most maxErrors messages. Callers hold mu.
func (s *runState) appendError(msg string) {
	if len(s.errs) >= s.maxErrors {
		s.truncated++
		return
	}
	s.errs = append(s.errs, msg)
}

// markPartial flags the run as cut short by the budget and records how many
// pairs were never evaluated.
func (s *runState) markPartial(budget time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partial = true
	remaining := s.pairs - s.skip - s.scored
	s.appendError(fmt.Sprintf("run budget %s exceeded: %d of %d pairs not evaluated", budget, remaining, s.pairs))
}

func (s *runState) snapshot(now time.Time, runErr error) *model.BatchStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := now
	stats := &model.BatchStats{
		RunID:           s.id,
		Status:          s.status,
		MinScore:        s.minScore,
		Listings:        s.listings,
		Opportunities:   s.opportunities,
		Pairs:           s.pairs,
		Skipped:         s.skip,
		Scored:          s.scored,
		Processed:       s.proc,
		Matched:         s.match,
		Failed:          s.failed,
		Errors:          append([]string(nil), s.errs...),
		ErrorsTruncated: s.truncated,
		Partial:         s.partial,
		StartedAt:       s.startedAt,
		CompletedAt:     &completed,
		DurationMs:      now.Sub(s.startedAt).Milliseconds(),
	}
	if runErr != nil {
		stats.FailureReason = runErr.Error()
	}
	return stats
}
