package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/popdash/internal/aggregate"
)

var (
	buildRows       string
	buildBoundaries string
	buildOutDir     string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the dashboard datasets from a long-form population table",
	Long:  "Reads a long-form CSV/XLSX (adm3_id, year, age buckets, total) and the district boundaries, then writes the time-series JSON, the cleaned table, and a GeoJSON enriched with latest-year totals and densities.",
	RunE: func(cmd *cobra.Command, args []string) error {
		boundaries := buildBoundaries
		if boundaries == "" {
			boundaries = cfg.Data.Boundaries
		}

		res, err := aggregate.Build(cmd.Context(), aggregate.Options{
			Rows:       buildRows,
			Boundaries: boundaries,
			OutDir:     buildOutDir,
			Opener:     newOpener(cfg),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "districts=%d records=%d dropped_zero=%d computed_area=%d latest_year=%d\n",
			res.Districts, res.Records, res.DroppedZero, res.ComputedArea, res.LatestYear)
		for _, f := range res.Files {
			_, _ = fmt.Fprintln(out, f)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildRows, "rows", "", "long-form population table, CSV or XLSX (required)")
	buildCmd.Flags().StringVar(&buildBoundaries, "boundaries", "", "district boundaries (default from config)")
	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "data", "output directory")
	_ = buildCmd.MarkFlagRequired("rows")
	rootCmd.AddCommand(buildCmd)
}
