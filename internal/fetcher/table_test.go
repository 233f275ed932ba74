package fetcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadCSVTable(t *testing.T) {
	input := "adm3_id, year ,total\nYE1101, 2015 ,660\n# skipped\nYE1101,2030,740\n"
	tbl, err := ReadCSVTable(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true, Comment: '#'})
	require.NoError(t, err)

	assert.Equal(t, []string{"adm3_id", "year", "total"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"YE1101", "2015", "660"}, tbl.Rows[0])
}

func TestReadCSVTable_StripsBOM(t *testing.T) {
	tbl, err := ReadCSVTable(context.Background(), strings.NewReader("\ufeffadm3_id,year\nYE1,2015\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "adm3_id", tbl.Header[0])
}

func TestTable_Records(t *testing.T) {
	tbl := Table{
		Header: []string{"adm3_id", "year", "total"},
		Rows:   [][]string{{"YE1", "2015", "10"}, {"YE2", "2020"}, {"YE3", "2030", "5", "extra"}},
	}
	recs := tbl.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, map[string]any{"adm3_id": "YE1", "year": "2015", "total": "10"}, recs[0])
	assert.NotContains(t, recs[1], "total")
	assert.Len(t, recs[2], 3)
}

func TestReadCSVTable_Semicolon(t *testing.T) {
	tbl, err := ReadCSVTable(context.Background(), strings.NewReader("a;b\n1;2\n"), CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tbl.Rows[0])
}

func TestReadCSVTable_Empty(t *testing.T) {
	_, err := ReadCSVTable(context.Background(), strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)
}

func TestReadCSVTable_Malformed(t *testing.T) {
	_, err := ReadCSVTable(context.Background(), strings.NewReader("a,b\n\"unterminated,1\n"), CSVOptions{})
	assert.Error(t, err)
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\n1\n"), CSVOptions{})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}

type flatRow struct {
	PCode string `json:"adm3_id"`
	Year  int    `json:"year"`
}

func TestCollectJSONArray(t *testing.T) {
	rows, err := CollectJSONArray[flatRow](context.Background(),
		strings.NewReader(`[{"adm3_id":"YE1","year":2015},{"adm3_id":"YE1","year":2030}]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2030, rows[1].Year)
}

func TestCollectJSONArray_NotArray(t *testing.T) {
	_, err := CollectJSONArray[flatRow](context.Background(), strings.NewReader(`{"YE1":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestCollectJSONArray_Empty(t *testing.T) {
	rows, err := CollectJSONArray[flatRow](context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEachJSONArray_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	seen := 0
	err := EachJSONArray(context.Background(), strings.NewReader(`[1,2,3]`), func(int) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	assert.Same(t, stop, err)
	assert.Equal(t, 2, seen)
}

func TestEachJSONObject_KeepsKeyOrder(t *testing.T) {
	input := `{"YE1102":[{"year":2015}],"YE1101":[{"year":2015},{"year":2030}],"YE1103":[]}`

	var keys []string
	var counts []int
	err := EachJSONObject(context.Background(), strings.NewReader(input), func(key string, rows []flatRow) error {
		keys = append(keys, key)
		counts = append(counts, len(rows))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"YE1102", "YE1101", "YE1103"}, keys)
	assert.Equal(t, []int{1, 2, 0}, counts)
}

func TestEachJSONObject_Errors(t *testing.T) {
	noop := func(string, []flatRow) error { return nil }

	err := EachJSONObject(context.Background(), strings.NewReader(`[]`), noop)
	assert.ErrorContains(t, err, "expected '{'")

	err = EachJSONObject(context.Background(), strings.NewReader(`{"YE1": 5}`), noop)
	assert.ErrorContains(t, err, `decode value of "YE1"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = EachJSONObject(ctx, strings.NewReader(`{"YE1": []}`), noop)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, EachJSONObject(context.Background(), strings.NewReader(""), noop))
}

func writeTestXLSX(t *testing.T, path string, sheetName string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))
}

func TestReadXLSXTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xlsx")
	writeTestXLSX(t, path, "rows", [][]string{
		{"adm3_id", "year", "total"},
		{"YE1101", "2015", "660"},
	})

	tbl, err := ReadXLSXTable(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"adm3_id", "year", "total"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "660", tbl.Rows[0][2])

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "missing"})
	assert.Error(t, err)
	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 4})
	assert.Error(t, err)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
