package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/popdash/internal/density"
)

var breaksYear int

var breaksCmd = &cobra.Command{
	Use:   "breaks",
	Short: "Print density breakpoints and the band of every district",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		year := resolveYear(breaksYear, cfg, store)
		formatLayer(cmd.OutOrStdout(), density.BuildLayer(store, year))
		return nil
	},
}

func formatLayer(out io.Writer, layer density.Layer) {
	_, _ = fmt.Fprintf(out, "year %d\n", layer.Year)
	for _, e := range layer.Legend.Entries {
		_, _ = fmt.Fprintf(out, "band %d  %s  %.2f - %.2f\n", e.Band, e.Color, e.Lower, e.Upper)
	}
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PCODE\tDENSITY\tBAND\tCOLOR")
	_, _ = fmt.Fprintln(w, "-----\t-------\t----\t-----")
	for _, s := range layer.Styles {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\n", s.PCode, s.Density, s.Band, s.Color)
	}
	_ = w.Flush()
}

func init() {
	breaksCmd.Flags().IntVar(&breaksYear, "year", 0, "target year (default: configured or latest)")
	rootCmd.AddCommand(breaksCmd)
}
