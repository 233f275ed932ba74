// Package projection derives the chart views of a district series: the
// age-structure pyramid for one year and the full population trend.
package projection

import (
	"github.com/sells-group/popdash/internal/model"
)

// Pyramid is the age-bucket distribution of one resolved record.
type Pyramid struct {
	// Year is the year of the record used.
	Year          int `json:"year"`
	RequestedYear int `json:"requested_year"`
	// Fallback is set when RequestedYear had no record and the latest was used.
	Fallback    *model.YearFallback       `json:"fallback,omitempty"`
	Percentages [model.NumBuckets]float64 `json:"percentages"`
	Absolutes   [model.NumBuckets]int64   `json:"absolutes"`
}

// BuildPyramid resolves year against the series and converts bucket counts to
// percentages of the bucket sum. ok is false for an empty series.
func BuildPyramid(series model.DistrictSeries, year int) (Pyramid, bool) {
	res, ok := series.Resolve(year)
	if !ok {
		return Pyramid{RequestedYear: year}, false
	}

	r := res.Record
	p := Pyramid{
		Year:          r.Year,
		RequestedYear: year,
		Fallback:      res.Fallback,
		Absolutes:     r.Buckets,
	}

	denom := float64(r.BucketSum())
	if denom == 0 {
		denom = 1
	}
	for i, v := range r.Buckets {
		p.Percentages[i] = float64(v) / denom * 100
	}
	return p, true
}

// Trend is the total population of every record in a series.
type Trend struct {
	Years  []int   `json:"years"`
	Totals []int64 `json:"totals"`
}

// BuildTrend returns the whole series, independent of any selected year.
// Records loaded without a total plot their derived bucket sum.
func BuildTrend(series model.DistrictSeries) Trend {
	t := Trend{
		Years:  make([]int, len(series.Records)),
		Totals: make([]int64, len(series.Records)),
	}
	for i, r := range series.Records {
		t.Years[i] = r.Year
		t.Totals[i] = r.Total
	}
	return t
}
