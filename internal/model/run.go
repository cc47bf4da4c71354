package model

import "time"

// RunStatus is the orchestrator state of a batch run.
type RunStatus string

const (
	RunIdle       RunStatus = "idle"
	RunLoading    RunStatus = "loading"
	RunScoring    RunStatus = "scoring"
	RunPersisting RunStatus = "persisting"
	RunDone       RunStatus = "done"
	RunFailed     RunStatus = "failed"
)

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunFailed
}

// BatchStats is the record of one orchestration pass.
type BatchStats struct {
	RunID           string     `json:"runId"`
	Status          RunStatus  `json:"status"`
	MinScore        int        `json:"minScore"`
	Listings        int        `json:"listings"`
	Opportunities   int        `json:"opportunities"`
	Pairs           int        `json:"pairs"`
	Skipped         int        `json:"skipped"`
	Scored          int        `json:"scored"`
	Processed       int        `json:"processed"`
	Matched         int        `json:"matched"`
	Failed          int        `json:"failed"`
	Errors          []string   `json:"errors,omitempty"`
	ErrorsTruncated int        `json:"errorsTruncated,omitempty"`
	Partial         bool       `json:"partial"`
	FailureReason   string     `json:"failureReason,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	DurationMs      int64      `json:"durationMs"`
}

// Succeeded reports whether the run completed without a run-level fault.
func (s *BatchStats) Succeeded() bool {
	return s.Status == RunDone
}
