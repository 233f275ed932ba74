// Package aggregate turns a long-form population table and the district
// boundaries into the static files the dashboard loads.
package aggregate

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/datastore"
	"github.com/sells-group/popdash/internal/density"
	"github.com/sells-group/popdash/internal/export"
	"github.com/sells-group/popdash/internal/fetcher"
	"github.com/sells-group/popdash/internal/model"
)

// Output file names written under the output directory.
const (
	SeriesFile  = "adm3_timeseries.json"
	TableFile   = "adm3_population_timeseries.csv"
	GeoJSONFile = "yemen_adm3_population.geojson"
)

// Options configures a build.
type Options struct {
	Rows       string
	Boundaries string
	OutDir     string
	Opener     *fetcher.Opener
}

// Result summarizes a build.
type Result struct {
	Districts    int      `json:"districts"`
	Records      int      `json:"records"`
	DroppedZero  int      `json:"dropped_zero"`
	ComputedArea int      `json:"computed_area"`
	LatestYear   int      `json:"latest_year"`
	Files        []string `json:"files"`
}

// Build loads the rows and boundaries and writes the three output files.
func Build(ctx context.Context, opts Options) (Result, error) {
	if opts.OutDir == "" {
		return Result{}, eris.New("aggregate: output directory is required")
	}

	store, err := datastore.Load(ctx, datastore.Sources{
		Boundaries: opts.Boundaries,
		Series:     opts.Rows,
	}, datastore.Options{Opener: opts.Opener})
	if err != nil {
		return Result{}, err
	}

	return Write(store, opts.OutDir)
}

// Write derives the output files from a loaded store. Records with a zero
// total are dropped, and boundaries without an area attribute get one computed
// from their geometry.
func Write(src *datastore.Store, outDir string) (Result, error) {
	var res Result

	boundaries := src.Boundaries()
	for i, b := range boundaries {
		if _, ok := b.Area(); ok || b.Geometry == nil {
			continue
		}
		if area := AreaKm2(b.Geometry); area > 0 {
			boundaries[i].AreaKm2 = &area
			res.ComputedArea++
		}
	}

	var series []model.DistrictSeries
	for _, code := range src.DistrictCodes() {
		kept := model.DistrictSeries{PCode: code}
		for _, r := range src.SeriesFor(code).Records {
			if r.Total == 0 {
				res.DroppedZero++
				continue
			}
			kept.Records = append(kept.Records, r)
			if r.Year > res.LatestYear {
				res.LatestYear = r.Year
			}
		}
		if !kept.Empty() {
			series = append(series, kept)
			res.Records += len(kept.Records)
		}
	}
	res.Districts = len(series)

	out := datastore.New(boundaries, series)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, eris.Wrapf(err, "aggregate: create %s", outDir)
	}

	write := func(name string, fn func(*os.File) error) error {
		path := filepath.Join(outDir, name)
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "aggregate: create %s", path)
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "aggregate: close %s", path)
		}
		res.Files = append(res.Files, path)
		return nil
	}

	if err := write(TableFile, func(f *os.File) error {
		return export.WriteCSV(f, export.Rows(out))
	}); err != nil {
		return res, err
	}

	if err := write(SeriesFile, func(f *os.File) error {
		return writeSeriesJSON(f, series)
	}); err != nil {
		return res, err
	}

	if err := write(GeoJSONFile, func(f *os.File) error {
		return writeEnrichedGeoJSON(f, out, res.LatestYear)
	}); err != nil {
		return res, err
	}

	zap.L().Info("aggregate: build complete",
		zap.Int("districts", res.Districts),
		zap.Int("records", res.Records),
		zap.Int("dropped_zero", res.DroppedZero),
		zap.Int("computed_area", res.ComputedArea),
		zap.Int("latest_year", res.LatestYear),
	)
	return res, nil
}

// writeSeriesJSON writes {pcode: [row, ...]} with rows in year order, using
// the same column names as the long-form table.
func writeSeriesJSON(w io.Writer, series []model.DistrictSeries) error {
	keys := model.BucketKeys()
	doc := make(map[string][]map[string]any, len(series))
	for _, s := range series {
		rows := make([]map[string]any, 0, len(s.Records))
		for _, r := range s.Records {
			row := map[string]any{
				"adm3_id": s.PCode,
				"year":    r.Year,
				"total":   r.Total,
			}
			for i, k := range keys {
				row[k] = r.Buckets[i]
			}
			rows = append(rows, row)
		}
		doc[s.PCode] = rows
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return eris.Wrap(err, "aggregate: encode series")
	}
	return nil
}

// writeEnrichedGeoJSON writes every boundary with the total and density of
// year. Districts without a record for exactly that year carry nulls.
func writeEnrichedGeoJSON(w io.Writer, src *datastore.Store, year int) error {
	byCode := make(map[string]density.DistrictDensity)
	for _, d := range density.CrossSection(src, year) {
		if d.Year == year && d.Total > 0 {
			byCode[d.PCode] = d
		}
	}

	return datastore.WriteGeoJSON(w, src.Boundaries(), func(b model.DistrictBoundary) map[string]any {
		props := map[string]any{"year": year, "total": nil, "density": nil}
		d, ok := byCode[b.PCode]
		if !ok {
			return props
		}
		props["total"] = d.Total
		if _, known := b.Area(); known {
			props["density"] = d.Density
		}
		return props
	})
}
