package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/popdash/internal/insight"
)

var (
	insightPCode  string
	insightYear   int
	insightFormat string
)

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Print the demographic insight for one district",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := loadStore(ctx, cfg)
		if err != nil {
			return err
		}

		b, ok := store.Boundary(insightPCode)
		if !ok {
			return eris.Errorf("insight: unknown district %q", insightPCode)
		}

		year := resolveYear(insightYear, cfg, store)
		res := insight.Classify(b.DisplayName(), store.SeriesFor(b.PCode), year)
		if !res.HasData() {
			zap.L().Warn("insight: district has no series", zap.String("pcode", b.PCode))
		}
		return writeInsight(cmd.OutOrStdout(), res, insightFormat)
	},
}

// writeInsight renders res as text, json, or yaml.
func writeInsight(w io.Writer, res insight.Result, format string) error {
	switch format {
	case "", "text":
		_, _ = fmt.Fprintf(w, "%s [%s]\n", res.District, res.Category.Label())
		if res.Fallback != nil {
			_, _ = fmt.Fprintf(w, "note: %s\n", res.Fallback)
		}
		_, _ = fmt.Fprintln(w, res.Text)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "insight: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "insight: encode yaml")
		}
		return eris.Wrap(enc.Close(), "insight: flush yaml")
	default:
		return eris.Errorf("insight: unknown format %q (want text, json, or yaml)", format)
	}
}

func init() {
	insightCmd.Flags().StringVar(&insightPCode, "pcode", "", "district code (required)")
	insightCmd.Flags().IntVar(&insightYear, "year", 0, "target year (default: configured or latest)")
	insightCmd.Flags().StringVar(&insightFormat, "format", "text", "output format: text, json, yaml")
	_ = insightCmd.MarkFlagRequired("pcode")
	rootCmd.AddCommand(insightCmd)
}
