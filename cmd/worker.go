package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/schedule"
)

var workerSchedule string

var workerCmd = &cobra.Command{
	Use:         "worker",
	Short:       "Run the Temporal worker that executes scheduled matching batches",
	Annotations: map[string]string{modeAnnotation: "worker"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := schedule.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		w := schedule.NewWorker(c, cfg.Temporal.TaskQueue, &schedule.Activities{Runner: env.Runner})

		tcfg := cfg.Temporal
		if workerSchedule != "" {
			tcfg.Schedule = workerSchedule
		}
		if tcfg.Schedule != "" {
			in := schedule.BatchInput{
				MinScore:   cfg.Matching.DefaultMinScore,
				BudgetSecs: cfg.Batch.RunTimeoutSecs,
			}
			if _, err := schedule.StartSchedule(ctx, c, tcfg, in); err != nil {
				return err
			}
		}

		zap.L().Info("starting temporal worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "temporal worker")
		}
		return nil
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerSchedule, "schedule", "", "cron schedule to start, e.g. \"0 */6 * * *\" (default from config)")
	rootCmd.AddCommand(workerCmd)
}
