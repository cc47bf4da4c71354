package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runMinScore int

var runCmd = &cobra.Command{
	Use:         "run",
	Short:       "Run one matching batch and print its stats",
	Annotations: map[string]string{modeAnnotation: "run"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		minScore := cfg.Matching.DefaultMinScore
		if cmd.Flags().Changed("min-score") {
			minScore = runMinScore
		}

		stats, runErr := env.Runner.RunBatch(ctx, minScore)
		if stats != nil {
			if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		zap.L().Info("run complete",
			zap.String("run_id", stats.RunID),
			zap.Int("matched", stats.Matched),
			zap.Bool("partial", stats.Partial),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runMinScore, "min-score", 0, "minimum overall score to persist (default matching.default_min_score)")
	rootCmd.AddCommand(runCmd)
}
