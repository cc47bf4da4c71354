package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/lease-match/internal/api"
	"github.com/sells-group/lease-match/internal/auth"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Start the HTTP API and matching trigger",
	Annotations: map[string]string{modeAnnotation: "serve"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := api.NewServer(api.Config{
			Port:               port,
			DefaultMinScore:    cfg.Matching.DefaultMinScore,
			DensityRadiusMiles: cfg.Density.RadiusMiles,
			AllowedOrigins:     cfg.Server.AllowedOrigins,
			TriggerRatePerMin:  cfg.Server.TriggerRatePerMin,
			RunBudget:          cfg.Batch.RunTimeout(),
		}, api.Deps{
			Runner:    env.Runner,
			Store:     env.Store,
			Analytics: env.Analytics,
			Density:   env.Density,
			Inventory: env.Inventory,
			Auth:      auth.New(cfg.Server.CronSecret, cfg.Server.SessionSecret),
		})
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
