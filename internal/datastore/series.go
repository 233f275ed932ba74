package datastore

import (
	"bufio"
	"context"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/popdash/internal/fetcher"
	"github.com/sells-group/popdash/internal/model"
)

// seriesSet is the parsed series dataset before indexing. order lists codes by
// first appearance.
type seriesSet struct {
	series     map[string]*model.DistrictSeries
	order      []string
	records    int
	rejected   int
	derived    int
	mismatches int
	duplicates int
}

func newSeriesSet() *seriesSet {
	return &seriesSet{series: make(map[string]*model.DistrictSeries)}
}

// addRow normalizes and stores one raw row. A repeated (district, year) pair
// replaces the earlier record.
func (s *seriesSet) addRow(row map[string]any, pcode string) {
	code, rec, mismatch, problem := normalizeRow(row, pcode)
	if problem != rowOK {
		s.rejected++
		return
	}
	if rec.TotalDerived {
		s.derived++
	}
	if mismatch {
		s.mismatches++
	}

	ds, ok := s.series[code]
	if !ok {
		ds = &model.DistrictSeries{PCode: code}
		s.series[code] = ds
		s.order = append(s.order, code)
	}
	for i := range ds.Records {
		if ds.Records[i].Year == rec.Year {
			ds.Records[i] = rec
			s.duplicates++
			return
		}
	}
	ds.Records = append(ds.Records, rec)
	s.records++
}

// finish sorts every series ascending by year.
func (s *seriesSet) finish() {
	for _, ds := range s.series {
		sort.SliceStable(ds.Records, func(i, j int) bool {
			return ds.Records[i].Year < ds.Records[j].Year
		})
	}
}

func loadSeries(ctx context.Context, opener *fetcher.Opener, location string) (*seriesSet, error) {
	var (
		set *seriesSet
		err error
	)
	switch ext := fetcher.Ext(location); ext {
	case ".json":
		set, err = openAndParse(ctx, opener, location, parseSeriesJSON)
	case ".csv":
		set, err = openAndParse(ctx, opener, location, parseSeriesCSV)
	case ".xlsx":
		local, cleanup, lerr := opener.Localize(ctx, location)
		if lerr != nil {
			return nil, lerr
		}
		defer cleanup()
		set, err = parseSeriesXLSX(local)
	default:
		return nil, eris.Errorf("datastore: unsupported series format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	set.finish()
	return set, nil
}

func openAndParse(ctx context.Context, opener *fetcher.Opener, location string,
	parse func(context.Context, io.Reader) (*seriesSet, error),
) (*seriesSet, error) {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return parse(ctx, rc)
}

// parseSeriesJSON accepts either {pcode: [record, ...]} or a flat array of rows
// that each carry their own district code. Map keys keep their file order.
func parseSeriesJSON(ctx context.Context, r io.Reader) (*seriesSet, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err == io.EOF {
		return nil, eris.New("datastore: empty series json")
	}
	if err != nil {
		return nil, eris.Wrap(err, "datastore: read series json")
	}

	set := newSeriesSet()
	switch first {
	case '[':
		var rows []map[string]any
		rows, err = fetcher.CollectJSONArray[map[string]any](ctx, br)
		for _, row := range rows {
			set.addRow(row, "")
		}
	case '{':
		err = fetcher.EachJSONObject(ctx, br, func(pcode string, rows []map[string]any) error {
			for _, row := range rows {
				set.addRow(row, pcode)
			}
			return nil
		})
	default:
		return nil, eris.Errorf("datastore: series json must be an object or array, got %q", first)
	}
	if err != nil {
		return nil, eris.Wrap(err, "datastore: decode series json")
	}
	return set, nil
}

// firstNonSpace peeks at the first significant byte without consuming it.
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\n', '\r':
			_, _ = br.ReadByte()
		default:
			return b[0], nil
		}
	}
}

func parseSeriesCSV(ctx context.Context, r io.Reader) (*seriesSet, error) {
	tbl, err := fetcher.ReadCSVTable(ctx, r, fetcher.CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrap(err, "datastore: read series csv")
	}
	return seriesFromTable(tbl), nil
}

func parseSeriesXLSX(path string) (*seriesSet, error) {
	tbl, err := fetcher.ReadXLSXTable(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "datastore: read series xlsx")
	}
	return seriesFromTable(tbl), nil
}

func seriesFromTable(tbl fetcher.Table) *seriesSet {
	set := newSeriesSet()
	for _, row := range tbl.Records() {
		set.addRow(row, "")
	}
	return set
}
