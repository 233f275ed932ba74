// Package export flattens the loaded series into the row-per-(district, year)
// table offered for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/popdash/internal/model"
)

// Source is the read side of the data store export needs.
type Source interface {
	DistrictCodes() []string
	Boundary(pcode string) (model.DistrictBoundary, bool)
	SeriesFor(pcode string) model.DistrictSeries
}

// Row is one (district, year) line.
type Row struct {
	PCode   string
	Name    string
	Year    int
	Buckets [model.NumBuckets]int64
	Total   int64
}

// Header returns the column names, matching the long-form input table.
func Header() []string {
	h := []string{"adm3_id", "adm3_name", "year"}
	h = append(h, model.BucketKeys()...)
	return append(h, "total")
}

// Rows flattens every district's series in load order.
func Rows(src Source) []Row {
	var rows []Row
	for _, code := range src.DistrictCodes() {
		b, _ := src.Boundary(code)
		for _, r := range src.SeriesFor(code).Records {
			rows = append(rows, Row{
				PCode:   code,
				Name:    b.Name,
				Year:    r.Year,
				Buckets: r.Buckets,
				Total:   r.Total,
			})
		}
	}
	return rows
}

func (r Row) cells() []string {
	out := make([]string, 0, 4+model.NumBuckets)
	out = append(out, r.PCode, r.Name, strconv.Itoa(r.Year))
	for _, v := range r.Buckets {
		out = append(out, strconv.FormatInt(v, 10))
	}
	return append(out, strconv.FormatInt(r.Total, 10))
}

// WriteCSV writes the header and rows as CSV.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.cells()); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "population"

// WriteXLSX writes the header and rows as a single-sheet workbook. Numeric
// columns are stored as numbers.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header() {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.PCode)
		row.AddCell().SetString(r.Name)
		row.AddCell().SetInt(r.Year)
		for _, v := range r.Buckets {
			row.AddCell().SetInt64(v)
		}
		row.AddCell().SetInt64(r.Total)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
