// Package datastore loads the boundary and time-series datasets and indexes
// them by district code.
package datastore

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/popdash/internal/fetcher"
	"github.com/sells-group/popdash/internal/model"
)

// Sources names the two dataset locations. Each may be a local path or an
// http(s):// or ftp:// URL.
type Sources struct {
	Boundaries string
	Series     string
}

// Options configures Load.
type Options struct {
	// Opener resolves locations. Nil uses a default local/HTTP/FTP opener.
	Opener *fetcher.Opener
}

// LoadReport summarizes what normalization kept and dropped.
type LoadReport struct {
	Districts         int      `json:"districts"`
	SeriesDistricts   int      `json:"series_districts"`
	Records           int      `json:"records"`
	RejectedFeatures  int      `json:"rejected_features"`
	DuplicateFeatures int      `json:"duplicate_features"`
	RejectedRecords   int      `json:"rejected_records"`
	DuplicateRecords  int      `json:"duplicate_records"`
	DerivedTotals     int      `json:"derived_totals"`
	TotalMismatches   int      `json:"total_mismatches"`
	MissingArea       int      `json:"missing_area"`
	MissingSeries     []string `json:"missing_series,omitempty"`
	OrphanSeries      []string `json:"orphan_series,omitempty"`
}

// Store is the immutable, indexed dataset. It is safe for concurrent reads.
type Store struct {
	codes      []string
	boundaries map[string]model.DistrictBoundary
	series     map[string]model.DistrictSeries
	years      []int
	report     LoadReport
}

// Load fetches both sources concurrently and indexes them. Both must succeed;
// the first failure cancels the other and is returned as a *DataLoadError.
func Load(ctx context.Context, src Sources, opts Options) (*Store, error) {
	opener := opts.Opener
	if opener == nil {
		opener = fetcher.NewOpener(fetcher.Options{})
	}

	var (
		bset *boundarySet
		sset *seriesSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set, err := loadBoundaries(gctx, opener, src.Boundaries)
		if err != nil {
			return &DataLoadError{Source: SourceBoundaries, Location: src.Boundaries, Err: err}
		}
		bset = set
		return nil
	})
	g.Go(func() error {
		set, err := loadSeries(gctx, opener, src.Series)
		if err != nil {
			return &DataLoadError{Source: SourceSeries, Location: src.Series, Err: err}
		}
		sset = set
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := build(bset.items, sset)
	s.report.RejectedFeatures = bset.rejected
	s.report.DuplicateFeatures = bset.duplicates

	zap.L().Info("datastore: loaded",
		zap.Int("districts", s.report.Districts),
		zap.Int("series_districts", s.report.SeriesDistricts),
		zap.Int("records", s.report.Records),
		zap.Ints("years", s.years),
	)
	if s.report.TotalMismatches > 0 {
		zap.L().Warn("datastore: stored totals disagree with bucket sums",
			zap.Int("records", s.report.TotalMismatches),
		)
	}
	if n := s.report.RejectedRecords + s.report.RejectedFeatures; n > 0 {
		zap.L().Warn("datastore: rejected entries without code or year",
			zap.Int("features", s.report.RejectedFeatures),
			zap.Int("records", s.report.RejectedRecords),
		)
	}
	if len(s.report.MissingSeries) > 0 {
		zap.L().Warn("datastore: districts without time series",
			zap.Strings("pcodes", s.report.MissingSeries),
		)
	}
	return s, nil
}

// New indexes already-normalized data. Codes follow boundary order. Series
// records are sorted by year.
func New(boundaries []model.DistrictBoundary, series []model.DistrictSeries) *Store {
	set := newSeriesSet()
	for _, ds := range series {
		cp := model.DistrictSeries{PCode: ds.PCode, Records: append([]model.YearRecord(nil), ds.Records...)}
		set.series[ds.PCode] = &cp
		set.order = append(set.order, ds.PCode)
		set.records += len(ds.Records)
	}
	set.finish()

	items := make([]model.DistrictBoundary, 0, len(boundaries))
	for _, b := range boundaries {
		if b.Bounds == (model.Bounds{}) {
			b.Bounds = model.BoundsOf(b.Geometry)
		}
		items = append(items, b)
	}
	return build(items, set)
}

func build(boundaries []model.DistrictBoundary, sset *seriesSet) *Store {
	s := &Store{
		codes:      make([]string, 0, len(boundaries)),
		boundaries: make(map[string]model.DistrictBoundary, len(boundaries)),
		series:     make(map[string]model.DistrictSeries, len(sset.series)),
	}

	for _, b := range boundaries {
		if _, dup := s.boundaries[b.PCode]; dup {
			continue
		}
		s.codes = append(s.codes, b.PCode)
		s.boundaries[b.PCode] = b
		if _, ok := b.Area(); !ok {
			s.report.MissingArea++
		}
	}

	yearSet := make(map[int]bool)
	for _, code := range sset.order {
		ds := *sset.series[code]
		s.series[code] = ds
		for _, r := range ds.Records {
			yearSet[r.Year] = true
		}
		if _, ok := s.boundaries[code]; !ok {
			s.report.OrphanSeries = append(s.report.OrphanSeries, code)
		}
	}
	for _, code := range s.codes {
		if ds, ok := s.series[code]; !ok || ds.Empty() {
			s.report.MissingSeries = append(s.report.MissingSeries, code)
		}
	}

	for y := range yearSet {
		s.years = append(s.years, y)
	}
	sort.Ints(s.years)

	s.report.Districts = len(s.codes)
	s.report.SeriesDistricts = len(s.series)
	s.report.Records = sset.records
	s.report.RejectedRecords = sset.rejected
	s.report.DuplicateRecords = sset.duplicates
	s.report.DerivedTotals = sset.derived
	s.report.TotalMismatches = sset.mismatches
	return s
}

// DistrictCodes returns the district codes in load order. The first code is
// the default selection.
func (s *Store) DistrictCodes() []string {
	return append([]string(nil), s.codes...)
}

// Boundaries returns all boundaries in load order.
func (s *Store) Boundaries() []model.DistrictBoundary {
	out := make([]model.DistrictBoundary, 0, len(s.codes))
	for _, c := range s.codes {
		out = append(out, s.boundaries[c])
	}
	return out
}

// Boundary returns the boundary for pcode.
func (s *Store) Boundary(pcode string) (model.DistrictBoundary, bool) {
	b, ok := s.boundaries[pcode]
	return b, ok
}

// HasDistrict reports whether pcode has a boundary.
func (s *Store) HasDistrict(pcode string) bool {
	_, ok := s.boundaries[pcode]
	return ok
}

// SeriesFor returns the series for pcode, or an empty series carrying the code
// when none was loaded.
func (s *Store) SeriesFor(pcode string) model.DistrictSeries {
	if ds, ok := s.series[pcode]; ok {
		return ds
	}
	return model.DistrictSeries{PCode: pcode}
}

// RequireSeries is SeriesFor that reports an absent or empty series as a
// *MissingSeriesError.
func (s *Store) RequireSeries(pcode string) (model.DistrictSeries, error) {
	ds := s.SeriesFor(pcode)
	if ds.Empty() {
		return ds, &MissingSeriesError{PCode: pcode}
	}
	return ds, nil
}

// Years returns every year present in any series, ascending.
func (s *Store) Years() []int {
	return append([]int(nil), s.years...)
}

// LatestYear returns the latest year in the dataset, or 0 when there is none.
func (s *Store) LatestYear() int {
	if len(s.years) == 0 {
		return 0
	}
	return s.years[len(s.years)-1]
}

// HasYear reports whether any series has a record for year.
func (s *Store) HasYear(year int) bool {
	i := sort.SearchInts(s.years, year)
	return i < len(s.years) && s.years[i] == year
}

// Report returns the normalization summary.
func (s *Store) Report() LoadReport {
	r := s.report
	r.MissingSeries = append([]string(nil), s.report.MissingSeries...)
	r.OrphanSeries = append([]string(nil), s.report.OrphanSeries...)
	return r
}
