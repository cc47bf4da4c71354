package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lease-match/internal/geospatial"
)

var (
	importFile   string
	importFormat string
	importChunk  int
)

var importCmd = &cobra.Command{
	Use:   "import-properties",
	Short: "Import the federal real-property inventory (xlsx, csv or shp)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := geospatial.NewImporter(env.Inventory, importChunk).
			ImportFile(ctx, importFile, geospatial.Format(importFormat))
		if err != nil {
			return err
		}
		// Cached densities and reference distributions are stale now.
		env.Density.Reset()

		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the inventory export")
	importCmd.Flags().StringVar(&importFormat, "format", "", "xlsx, csv or shp (detected from the extension when empty)")
	importCmd.Flags().IntVar(&importChunk, "chunk", geospatial.DefaultImportChunk, "properties upserted per batch")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
