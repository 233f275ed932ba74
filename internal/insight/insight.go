// Package insight classifies a district's demographic outlook from its time
// series and renders the narrative summary shown next to the charts.
package insight

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/popdash/internal/model"
)

// Category is the demographic classification of a district.
type Category string

// Categories. CategoryNone marks the no-data result.
const (
	CategoryYouthPotential Category = "youth_potential"
	CategoryAgingPressure  Category = "aging_pressure"
	CategoryLaborAdvantage Category = "labor_advantage"
	CategoryNone           Category = "none"
)

// Label returns the display name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryYouthPotential:
		return "Youth Potential"
	case CategoryAgingPressure:
		return "Aging Pressure"
	case CategoryLaborAdvantage:
		return "Labor Advantage"
	default:
		return "No Data"
	}
}

// Metrics are the shares, growth rates and indices behind a classification.
// Shares are fractions of the current total; growth rates are relative to the
// baseline (earliest) record.
type Metrics struct {
	BaselineYear int     `json:"baseline_year" yaml:"baseline_year"`
	Year         int     `json:"year" yaml:"year"`
	Work         int64   `json:"work" yaml:"work"`
	Total        int64   `json:"total" yaml:"total"`
	YouthShare   float64 `json:"youth_share" yaml:"youth_share"`
	WorkShare    float64 `json:"work_share" yaml:"work_share"`
	OldShare     float64 `json:"old_share" yaml:"old_share"`
	YouthGrowth  float64 `json:"youth_growth" yaml:"youth_growth"`
	OldGrowth    float64 `json:"old_growth" yaml:"old_growth"`
	TotalGrowth  float64 `json:"total_growth" yaml:"total_growth"`
	YouthIndex   float64 `json:"youth_index" yaml:"youth_index"`
	AgingIndex   float64 `json:"aging_index" yaml:"aging_index"`
	LaborIndex   float64 `json:"labor_index" yaml:"labor_index"`
}

// Result is a complete insight for one district and year.
type Result struct {
	District       string              `json:"district" yaml:"district"`
	Category       Category            `json:"category" yaml:"category"`
	Headline       string              `json:"headline" yaml:"headline"`
	PolicyBody     string              `json:"policy_body" yaml:"policy_body"`
	SecondaryNotes []string            `json:"secondary_notes" yaml:"secondary_notes"`
	Text           string              `json:"text" yaml:"text"`
	RequestedYear  int                 `json:"requested_year" yaml:"requested_year"`
	Metrics        *Metrics            `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Fallback       *model.YearFallback `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// HasData reports whether the result is a real classification.
func (r Result) HasData() bool {
	return r.Category != CategoryNone
}

// Classify derives the insight for series at year. name is the district's
// display name. An empty series yields the no-data result.
func Classify(name string, series model.DistrictSeries, year int) Result {
	p := message.NewPrinter(language.English)

	res, ok := series.Resolve(year)
	if !ok {
		text := p.Sprintf("No data available for %s.", name)
		return Result{
			District:      name,
			Category:      CategoryNone,
			Headline:      text,
			Text:          text,
			RequestedYear: year,
		}
	}

	m := computeMetrics(series.First(), res.Record)
	cat := categorize(m)

	headline := composeHeadline(p, name, cat, m)
	body := policyBody(p, cat, m)
	notes := secondaryNotes(p, m)

	text := headline + " " + body
	if len(notes) > 0 {
		text += " Secondary signals: " + strings.Join(notes, "; ")
	}

	return Result{
		District:       name,
		Category:       cat,
		Headline:       headline,
		PolicyBody:     body,
		SecondaryNotes: notes,
		Text:           normalizeSpace(text),
		RequestedYear:  year,
		Metrics:        &m,
		Fallback:       res.Fallback,
	}
}

func floorOne(v int64) float64 {
	if v < 1 {
		return 1
	}
	return float64(v)
}

func computeMetrics(baseline, current model.YearRecord) Metrics {
	youthBase, youthCur := float64(baseline.Youth()), float64(current.Youth())
	oldBase, oldCur := float64(baseline.Old()), float64(current.Old())
	work := float64(current.Work())
	totalBase, totalCur := floorOne(baseline.Total), floorOne(current.Total)

	m := Metrics{
		BaselineYear: baseline.Year,
		Year:         current.Year,
		Work:         current.Work(),
		Total:        current.Total,
		YouthShare:   youthCur / totalCur,
		WorkShare:    work / totalCur,
		OldShare:     oldCur / totalCur,
		YouthGrowth:  (youthCur - youthBase) / floorOne(baseline.Youth()),
		OldGrowth:    (oldCur - oldBase) / floorOne(baseline.Old()),
		TotalGrowth:  (totalCur - totalBase) / totalBase,
	}
	m.YouthIndex = m.YouthShare * (1 + m.YouthGrowth)
	m.AgingIndex = m.OldShare * (1 + m.OldGrowth)
	m.LaborIndex = m.WorkShare
	return m
}

// categorize picks Aging or Youth only when strictly greatest; every tie
// resolves to Labor.
func categorize(m Metrics) Category {
	switch {
	case m.AgingIndex > m.YouthIndex && m.AgingIndex > m.LaborIndex:
		return CategoryAgingPressure
	case m.YouthIndex > m.AgingIndex && m.YouthIndex > m.LaborIndex:
		return CategoryYouthPotential
	default:
		return CategoryLaborAdvantage
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
