package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// utf8BOM is what spreadsheet exports often put in front of the header.
const utf8BOM = "\ufeff"

// StreamCSV reads CSV rows from r and sends them, header included, to the row
// channel. Errors are sent on the error channel. Both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for first := true; ; first = false {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if first && len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], utf8BOM)
			}
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Records returns each row keyed by header name. Short rows leave the missing
// columns out; cells past the header are dropped.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, cells := range t.Rows {
		rec := make(map[string]any, len(t.Header))
		for i, h := range t.Header {
			if i < len(cells) {
				rec[h] = cells[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// ReadCSVTable drains StreamCSV into a Table. The first row is the header.
func ReadCSVTable(ctx context.Context, r io.Reader, opts CSVOptions) (Table, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var t Table
	first := true
	for row := range rowCh {
		if first {
			t.Header = row
			first = false
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	if err := <-errCh; err != nil {
		return Table{}, err
	}
	if first {
		return Table{}, eris.New("csv: empty input")
	}
	return t, nil
}

// tableFromRows splits the first row off as the header.
func tableFromRows(rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, eris.New("table: no header row")
	}
	return Table{Header: rows[0], Rows: rows[1:]}, nil
}
