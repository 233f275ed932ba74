package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the loaded time series as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		rows := export.Rows(store)

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", exportOut)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := writeExport(w, rows, exportFormat); err != nil {
			return err
		}
		zap.L().Info("export complete", zap.Int("rows", len(rows)), zap.String("format", exportFormat))
		return nil
	},
}

func writeExport(w io.Writer, rows []export.Row, format string) error {
	switch format {
	case "", "csv":
		return export.WriteCSV(w, rows)
	case "xlsx":
		return export.WriteXLSX(w, rows)
	default:
		return eris.Errorf("export: unknown format %q (want csv or xlsx)", format)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
