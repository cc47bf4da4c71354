package schedule

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/config"
)

// ScheduledWorkflowID is the fixed id of the cron workflow, so starting the
// schedule twice does not create two of them.
const ScheduledWorkflowID = "lease-match-batch"

// Dial connects to the Temporal frontend.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewLogger(zap.L().With(zap.String("component", "temporal"))),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// NewWorker registers the workflow and activity on taskQueue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{
		// One batch at a time per worker.
		MaxConcurrentActivityExecutionSize: 1,
	})
	Register(w, acts)
	return w
}

// Registry is implemented by workers and test environments.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the workflow and activity under their stable names.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(MatchBatchWorkflow, workflow.RegisterOptions{Name: WorkflowName})
	r.RegisterActivityWithOptions(acts.RunMatchBatch, activity.RegisterOptions{Name: ActivityName})
}

// StartSchedule starts the cron workflow. An already running schedule is
// left in place.
func StartSchedule(ctx context.Context, c client.Client, cfg config.TemporalConfig, in BatchInput) (string, error) {
	if cfg.Schedule == "" {
		return "", eris.New("schedule: temporal.schedule is empty")
	}
	opts := client.StartWorkflowOptions{
		ID:           ScheduledWorkflowID,
		TaskQueue:    cfg.TaskQueue,
		CronSchedule: cfg.Schedule,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, WorkflowName, in)
	if err != nil {
		return "", eris.Wrap(err, "schedule: start cron workflow")
	}
	zap.L().Info("schedule: cron workflow started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.String("schedule", cfg.Schedule),
	)
	return run.GetRunID(), nil
}
