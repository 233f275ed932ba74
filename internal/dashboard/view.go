package dashboard

import (
	"fmt"

	"github.com/sells-group/popdash/internal/density"
	"github.com/sells-group/popdash/internal/insight"
	"github.com/sells-group/popdash/internal/model"
	"github.com/sells-group/popdash/internal/projection"
)

// Accent colors of the insight panel.
const (
	AccentYouth   = "#2563eb"
	AccentAging   = "#ea580c"
	AccentLabor   = "#16a34a"
	AccentNeutral = "#6b7280"
)

// Renderer is the rendering collaborator the controller pushes to. Each call
// replaces whatever the renderer showed before for that element.
type Renderer interface {
	StyleDistricts(styles []density.StyleRequest)
	DrawLegend(legend density.LegendSpec)
	UpdatePyramid(vm PyramidViewModel)
	UpdateTrend(vm TrendViewModel)
	ShowInsight(text InsightText)
	ShowNoData(pcode, name string)
	FitBounds(pcode string, bounds model.Bounds)
}

// PyramidViewModel feeds the age-structure chart.
type PyramidViewModel struct {
	PCode         string    `json:"pcode"`
	Title         string    `json:"title"`
	Year          int       `json:"year"`
	RequestedYear int       `json:"requested_year"`
	Fallback      bool      `json:"fallback"`
	Labels        []string  `json:"labels"`
	Percentages   []float64 `json:"percentages"`
	Absolutes     []int64   `json:"absolutes"`
}

// TrendViewModel feeds the population trend chart.
type TrendViewModel struct {
	PCode  string  `json:"pcode"`
	Title  string  `json:"title"`
	Years  []int   `json:"years"`
	Totals []int64 `json:"totals"`
}

// InsightText feeds the narrative panel.
type InsightText struct {
	PCode         string           `json:"pcode"`
	Body          string           `json:"body"`
	Category      insight.Category `json:"category"`
	CategoryLabel string           `json:"category_label"`
	Accent        string           `json:"accent"`
	Year          int              `json:"year"`
	RequestedYear int              `json:"requested_year"`
	Fallback      bool             `json:"fallback"`
	Metrics       *insight.Metrics `json:"metrics,omitempty"`
}

// AccentFor returns the panel accent color of a category.
func AccentFor(c insight.Category) string {
	switch c {
	case insight.CategoryYouthPotential:
		return AccentYouth
	case insight.CategoryAgingPressure:
		return AccentAging
	case insight.CategoryLaborAdvantage:
		return AccentLabor
	default:
		return AccentNeutral
	}
}

// PyramidView builds the chart model for a district's pyramid.
func PyramidView(b model.DistrictBoundary, p projection.Pyramid) PyramidViewModel {
	title := fmt.Sprintf("Age structure, %s (%d)", b.DisplayName(), p.Year)
	if p.Fallback != nil {
		title = fmt.Sprintf("Age structure, %s (%d; %d not available)", b.DisplayName(), p.Year, p.RequestedYear)
	}
	return PyramidViewModel{
		PCode:         b.PCode,
		Title:         title,
		Year:          p.Year,
		RequestedYear: p.RequestedYear,
		Fallback:      p.Fallback != nil,
		Labels:        model.BucketLabels(),
		Percentages:   append([]float64(nil), p.Percentages[:]...),
		Absolutes:     append([]int64(nil), p.Absolutes[:]...),
	}
}

// TrendView builds the chart model for a district's trend.
func TrendView(b model.DistrictBoundary, t projection.Trend) TrendViewModel {
	return TrendViewModel{
		PCode:  b.PCode,
		Title:  fmt.Sprintf("Population trend, %s", b.DisplayName()),
		Years:  t.Years,
		Totals: t.Totals,
	}
}

// InsightView builds the panel model for an insight result.
func InsightView(pcode string, r insight.Result) InsightText {
	it := InsightText{
		PCode:         pcode,
		Body:          r.Text,
		Category:      r.Category,
		CategoryLabel: r.Category.Label(),
		Accent:        AccentFor(r.Category),
		RequestedYear: r.RequestedYear,
		Fallback:      r.Fallback != nil,
		Metrics:       r.Metrics,
	}
	if r.Metrics != nil {
		it.Year = r.Metrics.Year
	}
	return it
}
