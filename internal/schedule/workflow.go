// Package schedule runs matching batches from a Temporal worker.
package schedule

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/lease-match/internal/batch"
	"github.com/sells-group/lease-match/internal/model"
)

// Registered names.
const (
	WorkflowName = "MatchBatchWorkflow"
	ActivityName = "RunMatchBatch"
)

// Application error types returned by the activity.
const (
	ErrTypeRunInProgress = "RunInProgress"
	ErrTypeRunFailed     = "RunFailed"
)

// activityGrace is added to the run budget for the activity timeout so the
// runner always reports partial stats before Temporal gives up on it.
const activityGrace = time.Minute

// BatchInput parameterizes one scheduled run.
type BatchInput struct {
	MinScore   int `json:"minScore"`
	BudgetSecs int `json:"budgetSecs"`
}

func (in BatchInput) startToClose() time.Duration {
	budget := time.Duration(in.BudgetSecs) * time.Second
	if budget <= 0 {
		budget = batch.DefaultRunTimeout
	}
	return budget + activityGrace
}

// MatchBatchWorkflow executes one matching run. A run that is already in
// progress elsewhere in the worker is skipped, not failed.
func MatchBatchWorkflow(ctx workflow.Context, in BatchInput) (*model.BatchStats, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: in.startToClose(),
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	log := workflow.GetLogger(ctx)

	var stats model.BatchStats
	err := workflow.ExecuteActivity(ctx, ActivityName, in).Get(ctx, &stats)
	if err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == ErrTypeRunInProgress {
			log.Info("schedule: previous run still in progress, skipping")
			return nil, nil
		}
		return nil, err
	}

	log.Info("schedule: run complete",
		"run_id", stats.RunID,
		"matched", stats.Matched,
		"processed", stats.Processed,
		"partial", stats.Partial,
	)
	return &stats, nil
}

// BatchRunner runs a batch. *batch.Runner satisfies it.
type BatchRunner interface {
	RunBatch(ctx context.Context, minScore int) (*model.BatchStats, error)
}

// Activities holds the activity implementations.
type Activities struct {
	Runner BatchRunner
}

// RunMatchBatch runs the batch. Failures are never retried by Temporal; the
// next scheduled run is the retry.
func (a *Activities) RunMatchBatch(ctx context.Context, in BatchInput) (*model.BatchStats, error) {
	stats, err := a.Runner.RunBatch(ctx, in.MinScore)
	switch {
	case errors.Is(err, batch.ErrRunInProgress):
		return nil, temporal.NewNonRetryableApplicationError("run already in progress", ErrTypeRunInProgress, err)
	case err != nil:
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRunFailed, err, stats)
	}
	return stats, nil
}
