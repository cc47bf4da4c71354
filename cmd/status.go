package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/lease-match/internal/model"
)

var statusRuns int

type statusReport struct {
	TotalMatches        int                `json:"totalMatches"`
	ActiveListings      int                `json:"activeListings"`
	ActiveOpportunities int                `json:"activeOpportunities"`
	FederalProperties   int                `json:"federalProperties"`
	RecentRuns          []model.BatchStats `json:"recentRuns"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show match counts and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var rep statusReport
		if rep.TotalMatches, err = env.Store.CountMatches(ctx); err != nil {
			return err
		}
		if rep.ActiveListings, err = env.Store.CountActiveListings(ctx); err != nil {
			return err
		}
		if rep.ActiveOpportunities, err = env.Store.CountActiveOpportunities(ctx, time.Now().UTC()); err != nil {
			return err
		}
		if rep.FederalProperties, err = env.Inventory.Count(ctx); err != nil {
			return err
		}
		if rep.RecentRuns, err = env.Store.ListRuns(ctx, statusRuns); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rep)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
