package datastore

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/goleak"

	"github.com/sells-group/popdash/internal/fetcher"
	"github.com/sells-group/popdash/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const boundariesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 1,
     "properties": {"ADM3_PCODE": "YE1101", "ADM3_EN": "Al Bayda", "area_km2": 100},
     "geometry": {"type": "Polygon", "coordinates": [[[45,14],[45.1,14],[45.1,14.1],[45,14.1],[45,14]]]}},
    {"type": "Feature",
     "properties": {"adm3_pcode": "YE1102", "adm3_en": "Rada"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[44,15],[44.2,15],[44.2,15.2],[44,15]]]]}},
    {"type": "Feature",
     "properties": {"ADM3_EN": "No code"},
     "geometry": null}
  ]
}`

const seriesJSONMap = `{
  "YE1101": [
    {"year": 2030, "pre_school": 90, "school_age": 150, "university_age": 130, "working_age": 330, "retirement_age": 35, "eighty_plus": 5, "total": 740},
    {"year": 2015, "pre_school": 100, "school_age": 150, "university_age": 100, "working_age": 280, "retirement_age": 25, "eighty_plus": 5, "total": 660}
  ],
  "YE1102": [
    {"year": 2015, "pre_school": 10, "school_age": 20, "university_age": 10, "working_age": 50, "retirement_age": 8, "eighty_plus": 2},
    {"year": 2030, "pre_school": 10, "school_age": 20, "university_age": 10, "working_age": 50, "retirement_age": 8, "eighty_plus": 2, "total": 999}
  ],
  "YE9999": [
    {"year": 2015, "pre_school": 1, "school_age": 1, "university_age": 1, "working_age": 1, "retirement_age": 1, "eighty_plus": 1, "total": 6},
    {"pre_school": 1}
  ]
}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_GeoJSONAndSeriesMap(t *testing.T) {
	s, err := Load(context.Background(), Sources{
		Boundaries: writeFixture(t, "adm3.geojson", boundariesGeoJSON),
		Series:     writeFixture(t, "series.json", seriesJSONMap),
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"YE1101", "YE1102"}, s.DistrictCodes())
	assert.Equal(t, []int{2015, 2030}, s.Years())
	assert.Equal(t, 2030, s.LatestYear())
	assert.True(t, s.HasYear(2015))
	assert.False(t, s.HasYear(2020))

	b, ok := s.Boundary("YE1101")
	require.True(t, ok)
	assert.Equal(t, "Al Bayda", b.Name)
	area, ok := b.Area()
	assert.True(t, ok)
	assert.InDelta(t, 100, area, 1e-9)
	assert.InDelta(t, 45.1, b.Bounds.MaxLon, 1e-9)
	require.NotNil(t, b.Geometry)

	b2, ok := s.Boundary("YE1102")
	require.True(t, ok)
	assert.Nil(t, b2.AreaKm2)
	assert.Equal(t, "Rada", b2.Name)

	ds := s.SeriesFor("YE1101")
	assert.Equal(t, []int{2015, 2030}, ds.Years(), "records sorted by year")
	assert.Equal(t, int64(660), ds.First().Total)

	ds2 := s.SeriesFor("YE1102")
	assert.True(t, ds2.First().TotalDerived)
	assert.Equal(t, int64(100), ds2.First().Total)
	assert.Equal(t, int64(999), ds2.Latest().Total, "stored total is authoritative")

	r := s.Report()
	assert.Equal(t, 2, r.Districts)
	assert.Equal(t, 3, r.SeriesDistricts)
	assert.Equal(t, 1, r.RejectedFeatures)
	assert.Equal(t, 1, r.RejectedRecords)
	assert.Equal(t, 1, r.DerivedTotals)
	assert.Equal(t, 1, r.TotalMismatches)
	assert.Equal(t, 1, r.MissingArea)
	assert.Equal(t, []string{"YE9999"}, r.OrphanSeries)
	assert.Empty(t, r.MissingSeries)
}

func TestLoad_SeriesForUnknownIsEmpty(t *testing.T) {
	s := New(nil, nil)
	ds := s.SeriesFor("YE0000")
	assert.True(t, ds.Empty())
	assert.Equal(t, "YE0000", ds.PCode)

	_, err := s.RequireSeries("YE0000")
	var missing *MissingSeriesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "YE0000", missing.PCode)
	assert.Equal(t, 0, s.LatestYear())
}

func TestLoad_SeriesRowsJSON(t *testing.T) {
	rows := `[
	  {"adm3_id": "YE1101", "year": "2020", "pre_school": "5", "working_age": 10, "pop_total": 15},
	  {"ADM3_PCODE": "YE1101", "year": 2015, "working_age": 7},
	  {"year": 2015, "working_age": 7}
	]`
	s, err := Load(context.Background(), Sources{
		Boundaries: writeFixture(t, "adm3.geojson", boundariesGeoJSON),
		Series:     writeFixture(t, "rows.json", rows),
	}, Options{})
	require.NoError(t, err)

	ds := s.SeriesFor("YE1101")
	require.Len(t, ds.Records, 2)
	assert.Equal(t, 2015, ds.First().Year)
	assert.Equal(t, int64(15), ds.Latest().Total)
	assert.Equal(t, int64(5), ds.Latest().Count(model.PreSchool))
	assert.Equal(t, 1, s.Report().RejectedRecords)
	assert.Equal(t, []string{"YE1102"}, s.Report().MissingSeries)
}

func TestLoad_SeriesCSV(t *testing.T) {
	csv := "adm3_id,year,pre_school,school_age,university_age,working_age,retirement_age,eighty_plus,total\n" +
		"YE1101,2015,100,150,100,280,25,5,660\n" +
		"YE1101,2030,90,150,130,330,35,5,740\n" +
		"YE1102,2015,1,1,1,1,1,1,\n" +
		",2015,1,1,1,1,1,1,6\n" +
		"YE1102,n/a,1,1,1,1,1,1,6\n"
	s, err := Load(context.Background(), Sources{
		Boundaries: writeFixture(t, "adm3.geojson", boundariesGeoJSON),
		Series:     writeFixture(t, "rows.csv", csv),
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(740), s.SeriesFor("YE1101").Latest().Total)
	yr := s.SeriesFor("YE1102").First()
	assert.True(t, yr.TotalDerived)
	assert.Equal(t, int64(6), yr.Total)
	assert.Equal(t, 2, s.Report().RejectedRecords)
}

func TestLoad_DuplicateYearReplaces(t *testing.T) {
	csv := "adm3_id,year,working_age\nYE1101,2015,1\nYE1101,2015,9\n"
	s, err := Load(context.Background(), Sources{
		Boundaries: writeFixture(t, "adm3.geojson", boundariesGeoJSON),
		Series:     writeFixture(t, "rows.csv", csv),
	}, Options{})
	require.NoError(t, err)

	ds := s.SeriesFor("YE1101")
	require.Len(t, ds.Records, 1)
	assert.Equal(t, int64(9), ds.First().Total)
	assert.Equal(t, 1, s.Report().DuplicateRecords)
}

func TestLoad_SeriesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("rows")
	require.NoError(t, err)
	for _, r := range [][]string{
		{"adm3_id", "year", "working_age", "total"},
		{"YE1101", "2015", "280", "660"},
	} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	s, err := Load(context.Background(), Sources{
		Boundaries: writeFixture(t, "adm3.geojson", boundariesGeoJSON),
		Series:     path,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(660), s.SeriesFor("YE1101").First().Total)
}

func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "adm3.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("ADM3_PCODE", 10),
		shp.StringField("ADM3_EN", 20),
		shp.FloatField("area_km2", 12, 2),
	}))

	points := []shp.Point{
		{X: 45.0, Y: 14.0},
		{X: 45.0, Y: 14.1},
		{X: 45.1, Y: 14.1},
		{X: 45.1, Y: 14.0},
		{X: 45.0, Y: 14.0},
	}
	poly := &shp.Polygon{
		Box:       shp.BBoxFromPoints(points),
		NumParts:  1,
		NumPoints: int32(len(points)),
		Parts:     []int32{0},
		Points:    points,
	}
	n := w.Write(poly)
	require.NoError(t, w.WriteAttribute(int(n), 0, "YE1101"))
	require.NoError(t, w.WriteAttribute(int(n), 1, "Al Bayda"))
	require.NoError(t, w.WriteAttribute(int(n), 2, 123.5))
	w.Close()

	// go-shp names the attribute sidecar "adm3dbf"; the reader wants "adm3.dbf".
	if _, err := os.Stat(filepath.Join(dir, "adm3dbf")); err == nil {
		require.NoError(t, os.Rename(filepath.Join(dir, "adm3dbf"), filepath.Join(dir, "adm3.dbf")))
	}
	return path
}

// zipShapefile packs the .shp and its sidecars into dir/adm3.zip under a
// nested folder, the way boundary downloads usually ship.
func zipShapefile(t *testing.T, shpPath string) string {
	t.Helper()
	dir := filepath.Dir(shpPath)
	zipPath := filepath.Join(t.TempDir(), "adm3.zip")

	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		data, err := os.ReadFile(filepath.Join(dir, "adm3"+ext))
		require.NoError(t, err)
		fw, err := zw.Create("yem_adm3/adm3" + ext)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return zipPath
}

func assertShapefileDistrict(t *testing.T, s *Store) {
	t.Helper()
	assert.Equal(t, []string{"YE1101"}, s.DistrictCodes())
	b, _ := s.Boundary("YE1101")
	assert.Equal(t, "Al Bayda", b.Name)
	area, ok := b.Area()
	assert.True(t, ok)
	assert.InDelta(t, 123.5, area, 1e-6)
	assert.InDelta(t, 14.1, b.Bounds.MaxLat, 1e-9)
}

func TestLoad_Shapefile(t *testing.T) {
	shpPath := writeShapefile(t, t.TempDir())
	s, err := Load(context.Background(), Sources{
		Boundaries: shpPath,
		Series:     writeFixture(t, "series.json", seriesJSONMap),
	}, Options{})
	require.NoError(t, err)
	assertShapefileDistrict(t, s)
}

func TestLoad_ZippedShapefile(t *testing.T) {
	zipPath := zipShapefile(t, writeShapefile(t, t.TempDir()))
	s, err := Load(context.Background(), Sources{
		Boundaries: zipPath,
		Series:     writeFixture(t, "series.json", seriesJSONMap),
	}, Options{})
	require.NoError(t, err)
	assertShapefileDistrict(t, s)
}

func TestLoad_RemoteZipWithDefaultOpener(t *testing.T) {
	zipData, err := os.ReadFile(zipShapefile(t, writeShapefile(t, t.TempDir())))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		switch r.URL.Path {
		case "/adm3.zip":
			_, _ = w.Write(zipData)
		case "/series.json":
			_, _ = w.Write([]byte(seriesJSONMap))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := Load(context.Background(), Sources{
		Boundaries: srv.URL + "/adm3.zip",
		Series:     srv.URL + "/series.json",
	}, Options{})
	require.NoError(t, err)
	assertShapefileDistrict(t, s)
	assert.Equal(t, int64(660), s.SeriesFor("YE1101").First().Total)
}

func TestPolygonToMultiPolygon_MultiPart(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0},
			{X: 2, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 2}, {X: 2, Y: 2},
		},
	}
	mp := polygonToMultiPolygon(poly)
	require.NotNil(t, mp)
	assert.Equal(t, 2, mp.NumPolygons())

	assert.Nil(t, polygonToMultiPolygon(&shp.Polygon{}))
	assert.Nil(t, polygonToMultiPolygon(nil))
}

type bytesFetcher struct {
	data map[string][]byte
}

func (f *bytesFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	b, ok := f.data[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *bytesFetcher) DownloadToFile(ctx context.Context, url, path string) (int64, error) {
	rc, err := f.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck
	b, _ := io.ReadAll(rc)
	return int64(len(b)), os.WriteFile(path, b, 0o644)
}

func TestLoad_RemoteSources(t *testing.T) {
	remote := &bytesFetcher{data: map[string][]byte{
		"https://data.example.org/adm3.geojson":  []byte(boundariesGeoJSON),
		"ftp://ftp.example.org/pub/series.json": []byte(seriesJSONMap),
	}}
	opener := fetcher.NewOpenerWith(remote, remote, t.TempDir())

	s, err := Load(context.Background(), Sources{
		Boundaries: "https://data.example.org/adm3.geojson",
		Series:     "ftp://ftp.example.org/pub/series.json",
	}, Options{Opener: opener})
	require.NoError(t, err)
	assert.Len(t, s.DistrictCodes(), 2)
}

func TestLoad_Failures(t *testing.T) {
	good := writeFixture(t, "adm3.geojson", boundariesGeoJSON)
	goodSeries := writeFixture(t, "series.json", seriesJSONMap)
	missing := filepath.Join(t.TempDir(), "missing.json")

	tests := []struct {
		name       string
		src        Sources
		wantSource string
	}{
		{"boundaries missing", Sources{Boundaries: missing, Series: goodSeries}, SourceBoundaries},
		{"series missing", Sources{Boundaries: good, Series: missing}, SourceSeries},
		{"boundaries not a collection", Sources{Boundaries: writeFixture(t, "b.geojson", `{"type":"Feature"}`), Series: goodSeries}, SourceBoundaries},
		{"boundaries malformed", Sources{Boundaries: writeFixture(t, "c.geojson", `{`), Series: goodSeries}, SourceBoundaries},
		{"series scalar json", Sources{Boundaries: good, Series: writeFixture(t, "s.json", `42`)}, SourceSeries},
		{"series empty json", Sources{Boundaries: good, Series: writeFixture(t, "e.json", "  \n")}, SourceSeries},
		{"series truncated map", Sources{Boundaries: good, Series: writeFixture(t, "t.json", `{"YE1101": [`)}, SourceSeries},
		{"series unsupported ext", Sources{Boundaries: good, Series: writeFixture(t, "s.parquet", "x")}, SourceSeries},
		{"boundaries unsupported ext", Sources{Boundaries: writeFixture(t, "b.kml", "x"), Series: goodSeries}, SourceBoundaries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(context.Background(), tt.src, Options{})
			require.Error(t, err)
			assert.Nil(t, s)

			var dle *DataLoadError
			require.ErrorAs(t, err, &dle)
			assert.Equal(t, tt.wantSource, dle.Source)
			assert.True(t, strings.HasPrefix(err.Error(), "datastore: load "+tt.wantSource))
		})
	}
}

func TestNew_SortsAndIndexes(t *testing.T) {
	area := 50.0
	s := New(
		[]model.DistrictBoundary{{PCode: "B", AreaKm2: &area}, {PCode: "A"}},
		[]model.DistrictSeries{{PCode: "B", Records: []model.YearRecord{{Year: 2030}, {Year: 2015}}}},
	)
	assert.Equal(t, []string{"B", "A"}, s.DistrictCodes())
	assert.Equal(t, []int{2015, 2030}, s.SeriesFor("B").Years())
	assert.Equal(t, []string{"A"}, s.Report().MissingSeries)
	assert.True(t, s.HasDistrict("A"))
	assert.Len(t, s.Boundaries(), 2)
}

func TestNormalizeRow(t *testing.T) {
	tests := []struct {
		name     string
		row      map[string]any
		pcode    string
		wantCode string
		wantProb rowProblem
		wantMis  bool
	}{
		{"code from key", map[string]any{"year": 2015.0, "total": 0.0}, "YE1", "YE1", rowOK, false},
		{"row code wins", map[string]any{"pcode": "YE2", "year": 2015.0}, "YE1", "YE2", rowOK, false},
		{"case insensitive alias", map[string]any{"Adm3_Pcode": "YE3", "YEAR": "2020"}, "", "YE3", rowOK, false},
		{"no code", map[string]any{"year": 2015.0}, "", "", rowNoCode, false},
		{"blank code", map[string]any{"adm3_id": " ", "year": 2015.0}, "", "", rowNoCode, false},
		{"no year", map[string]any{"adm3_id": "YE4"}, "", "YE4", rowNoYear, false},
		{"mismatch", map[string]any{"adm3_id": "YE5", "year": 2015.0, "working_age": 3.0, "total": 4.0}, "", "YE5", rowOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, mismatch, prob := normalizeRow(tt.row, tt.pcode)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantProb, prob)
			assert.Equal(t, tt.wantMis, mismatch)
		})
	}
}

func TestAsFloat(t *testing.T) {
	f, ok := asFloat("1,234.5")
	assert.True(t, ok)
	assert.InDelta(t, 1234.5, f, 1e-9)

	_, ok = asFloat("NaN")
	assert.False(t, ok)
	_, ok = asFloat(true)
	assert.False(t, ok)
}
