package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lease-match/internal/config"
)

// modeAnnotation selects the config validation mode of a command.
const modeAnnotation = "config-mode"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lease-match",
	Short: "Match commercial lease listings to government space requirements",
	Long:  "Scores every active listing against every open government lease opportunity, persists qualifying matches and serves the results over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return cfg.Validate(commandMode(cmd))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// commandMode returns the validation mode annotated on cmd or its parents.
func commandMode(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if m, ok := c.Annotations[modeAnnotation]; ok {
			return m
		}
	}
	return "read"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
