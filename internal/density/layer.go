package density

import (
	"github.com/sells-group/popdash/internal/model"
)

// Source is the read side of the data store the layer needs.
type Source interface {
	DistrictCodes() []string
	Boundary(pcode string) (model.DistrictBoundary, bool)
	SeriesFor(pcode string) model.DistrictSeries
}

// DistrictDensity is one district's density for a year.
type DistrictDensity struct {
	PCode   string  `json:"pcode"`
	Total   int64   `json:"total"`
	Density float64 `json:"density"`
	// Year is the record year actually used, which differs from the requested
	// year when the series falls back to its latest record.
	Year int `json:"year"`
}

// CrossSection computes every district's density for year in load order. A
// district with no series or an unknown/zero area has density 0.
func CrossSection(src Source, year int) []DistrictDensity {
	codes := src.DistrictCodes()
	out := make([]DistrictDensity, 0, len(codes))
	for _, code := range codes {
		d := DistrictDensity{PCode: code}
		res, ok := src.SeriesFor(code).Resolve(year)
		if ok {
			d.Total = res.Record.Total
			d.Year = res.Record.Year
			if b, found := src.Boundary(code); found {
				if area, known := b.Area(); known {
					d.Density = float64(d.Total) / area
				}
			}
		}
		out = append(out, d)
	}
	return out
}

// StyleRequest tells the map renderer how to color one district.
type StyleRequest struct {
	PCode   string  `json:"pcode"`
	Band    Band    `json:"band"`
	Color   string  `json:"color"`
	Density float64 `json:"density"`
}

// Layer is the full choropleth state for one year.
type Layer struct {
	Year        int            `json:"year"`
	Breakpoints Breakpoints    `json:"breakpoints"`
	Styles      []StyleRequest `json:"styles"`
	Legend      LegendSpec     `json:"legend"`
}

// BuildLayer classifies every district for year. Breakpoints come from the
// whole cross-section.
func BuildLayer(src Source, year int) Layer {
	cross := CrossSection(src, year)
	values := make([]float64, len(cross))
	for i, d := range cross {
		values[i] = d.Density
	}
	bp := ComputeBreakpoints(values)

	styles := make([]StyleRequest, len(cross))
	for i, d := range cross {
		band := Classify(d.Density, bp)
		styles[i] = StyleRequest{PCode: d.PCode, Band: band, Color: ColorFor(band), Density: d.Density}
	}
	return Layer{Year: year, Breakpoints: bp, Styles: styles, Legend: Legend(bp)}
}
