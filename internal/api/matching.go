package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/auth"
	"github.com/sells-group/lease-match/internal/batch"
	"github.com/sells-group/lease-match/internal/model"
	"github.com/sells-group/lease-match/internal/store"
)

// maxTriggerBody bounds the trigger request body.
const maxTriggerBody = 4 << 10

var errInvalidMinScore = eris.New("minScore must be an integer between 0 and 100")

// triggerStats is the stats object of a trigger response.
type triggerStats struct {
	RunID         string `json:"runId"`
	Processed     int    `json:"processed"`
	Matched       int    `json:"matched"`
	Skipped       int    `json:"skipped"`
	Scored        int    `json:"scored"`
	Failed        int    `json:"failed"`
	Listings      int    `json:"listings"`
	Opportunities int    `json:"opportunities"`
	Partial       bool   `json:"partial"`
	DurationMs    int64  `json:"durationMs"`
}

type triggerResponse struct {
	Success bool          `json:"success"`
	Stats   *triggerStats `json:"stats,omitempty"`
	Errors  []string      `json:"errors,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func toTriggerStats(s *model.BatchStats) *triggerStats {
	if s == nil {
		return nil
	}
	return &triggerStats{
		RunID:         s.RunID,
		Processed:     s.Processed,
		Matched:       s.Matched,
		Skipped:       s.Skipped,
		Scored:        s.Scored,
		Failed:        s.Failed,
		Listings:      s.Listings,
		Opportunities: s.Opportunities,
		Partial:       s.Partial,
		DurationMs:    s.DurationMs,
	}
}

// triggerRun executes a batch run synchronously and reports its stats.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	minScore, err := s.parseMinScore(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	log := zap.L().With(zap.String("component", "api"), zap.String("request_id", requestID(r)))
	if p, ok := auth.FromContext(r.Context()); ok {
		log = log.With(zap.String("principal", string(p.Kind)), zap.String("subject", p.Subject))
	}
	log.Info("api: matching run requested", zap.Int("min_score", minScore))

	// A dropped client connection must not abort a run in progress.
	stats, err := s.deps.Runner.RunBatch(context.WithoutCancel(r.Context()), minScore)
	switch {
	case errors.Is(err, batch.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run already in progress")
		return
	case errors.Is(err, batch.ErrInvalidMinScore):
		badRequest(w, "minScore must be an integer between 0 and 100")
		return
	case err != nil:
		log.Error("api: matching run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, triggerResponse{
			Success: false,
			Stats:   toTriggerStats(stats),
			Error:   failureReason(stats, err),
		})
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse{
		Success: true,
		Stats:   toTriggerStats(stats),
		Errors:  stats.Errors,
	})
}

func failureReason(stats *model.BatchStats, err error) string {
	if stats != nil && stats.FailureReason != "" {
		return stats.FailureReason
	}
	return err.Error()
}

// parseMinScore reads minScore from the query string or a JSON body, falling
// back to the configured default.
func (s *Server) parseMinScore(r *http.Request) (int, error) {
	if q := r.URL.Query().Get("minScore"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 || v > 100 {
			return 0, errInvalidMinScore
		}
		return v, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTriggerBody))
	if err != nil {
		return 0, eris.Wrap(err, "read request body")
	}
	if len(body) > 0 {
		var req struct {
			MinScore *float64 `json:"minScore"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return 0, eris.New("invalid request body")
		}
		if req.MinScore != nil {
			v := *req.MinScore
			if v != math.Trunc(v) || v < 0 || v > 100 {
				return 0, errInvalidMinScore
			}
			return int(v), nil
		}
	}
	return s.cfg.DefaultMinScore, nil
}

type statusResponse struct {
	TotalMatches        int `json:"totalMatches"`
	ActiveListings      int `json:"activeListings"`
	ActiveOpportunities int `json:"activeOpportunities"`
}

func (s *Server) matchingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp statusResponse
	var err error
	if resp.TotalMatches, err = s.deps.Store.CountMatches(ctx); err != nil {
		internalError(w, r, err)
		return
	}
	if resp.ActiveListings, err = s.deps.Store.CountActiveListings(ctx); err != nil {
		internalError(w, r, err)
		return
	}
	if resp.ActiveOpportunities, err = s.deps.Store.CountActiveOpportunities(ctx, s.nowFunc().UTC()); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMatchFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	matches, err := s.deps.Store.ListMatches(r.Context(), filter)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

func parseMatchFilter(r *http.Request) (store.MatchFilter, error) {
	q := r.URL.Query()
	f := store.MatchFilter{
		ListingID:     q.Get("listing_id"),
		OpportunityID: q.Get("opportunity_id"),
	}

	var err error
	if f.MinScore, err = intParam(q.Get("min_score"), 0, 0, 100); err != nil {
		return f, eris.Wrap(err, "min_score")
	}
	if f.Limit, err = intParam(q.Get("limit"), 0, 1, store.MaxListLimit); err != nil {
		return f, eris.Wrap(err, "limit")
	}
	if f.Offset, err = intParam(q.Get("offset"), 0, 0, math.MaxInt32); err != nil {
		return f, eris.Wrap(err, "offset")
	}
	if g := q.Get("grade"); g != "" {
		if !slices.Contains(model.Grades, model.Grade(g)) {
			return f, eris.Errorf("grade: unknown grade %q", g)
		}
		f.Grade = model.Grade(g)
	}
	if f.Qualified, err = boolParam(q.Get("qualified")); err != nil {
		return f, eris.Wrap(err, "qualified")
	}
	if f.Competitive, err = boolParam(q.Get("competitive")); err != nil {
		return f, eris.Wrap(err, "competitive")
	}
	return f, nil
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 20, 1, 500)
	if err != nil {
		badRequest(w, "limit: "+err.Error())
		return
	}
	runs, err := s.deps.Store.ListRuns(r.Context(), limit)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.BatchStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// intParam parses an optional integer in [lo, hi].
func intParam(v string, def, lo, hi int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eris.Errorf("%q is not an integer", v)
	}
	if n < lo || n > hi {
		return 0, eris.Errorf("%d outside [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func boolParam(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, eris.Errorf("%q is not a boolean", v)
	}
	return &b, nil
}

func floatParam(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("%q is not a number", v)
	}
	return f, nil
}
