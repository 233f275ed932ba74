package density

// Palette holds the band colors, Band0 first.
var Palette = [NumBands]string{
	"#ffffb2",
	"#fecc5c",
	"#fd8d3c",
	"#f03b20",
	"#bd0026",
}

// ColorFor returns the fill color of a band. Out-of-range bands clamp.
func ColorFor(b Band) string {
	if b < Band0 {
		b = Band0
	}
	if b > Band4 {
		b = Band4
	}
	return Palette[b]
}

// LegendEntry is one legend row: the band, its color and its value range.
// Upper is the band's inclusive upper threshold; the top band uses Max.
type LegendEntry struct {
	Band  Band    `json:"band"`
	Color string  `json:"color"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// LegendSpec is what a legend renderer draws for one year.
type LegendSpec struct {
	Breakpoints Breakpoints      `json:"breakpoints"`
	Colors      [NumBands]string `json:"colors"`
	Entries     []LegendEntry    `json:"entries"`
}

// Legend builds the legend for a set of breakpoints.
func Legend(bp Breakpoints) LegendSpec {
	th := bp.Thresholds()
	bounds := [NumBands + 1]float64{0, th[0], th[1], th[2], th[3], bp.Max}

	entries := make([]LegendEntry, NumBands)
	for i := range NumBands {
		entries[i] = LegendEntry{
			Band:  Band(i),
			Color: Palette[i],
			Lower: bounds[i],
			Upper: bounds[i+1],
		}
	}
	return LegendSpec{Breakpoints: bp, Colors: Palette, Entries: entries}
}
