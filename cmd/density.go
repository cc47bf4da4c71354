package main

import (
	"github.com/spf13/cobra"
)

var (
	densityLat    float64
	densityLng    float64
	densityRadius float64
)

var densityCmd = &cobra.Command{
	Use:   "density",
	Short: "Score federal real-property density around a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		radius := densityRadius
		if radius <= 0 {
			radius = cfg.Density.RadiusMiles
		}
		score, err := env.Density.Score(ctx, densityLat, densityLng, radius)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), score)
	},
}

func init() {
	densityCmd.Flags().Float64Var(&densityLat, "lat", 0, "latitude")
	densityCmd.Flags().Float64Var(&densityLng, "lng", 0, "longitude")
	densityCmd.Flags().Float64Var(&densityRadius, "radius", 0, "radius in miles (default from config)")
	_ = densityCmd.MarkFlagRequired("lat")
	_ = densityCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(densityCmd)
}
