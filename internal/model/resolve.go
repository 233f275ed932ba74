package model

import "fmt"

// YearFallback describes a year lookup that did not find an exact match and
// substituted the latest record instead. It is informational, not an error.
type YearFallback struct {
	PCode     string `json:"pcode,omitempty" yaml:"pcode,omitempty"`
	Requested int    `json:"requested" yaml:"requested"`
	Resolved  int    `json:"resolved" yaml:"resolved"`
}

func (n *YearFallback) String() string {
	return fmt.Sprintf("year %d not available for %s, using %d", n.Requested, n.PCode, n.Resolved)
}

// Resolution is the outcome of resolving a target year against a series.
type Resolution struct {
	Record YearRecord
	// Fallback is non-nil when the requested year was absent.
	Fallback *YearFallback
}

// Resolve finds the record whose year equals year. When none exists it returns
// the latest record with a fallback notice. ok is false only for an empty series.
func (s DistrictSeries) Resolve(year int) (res Resolution, ok bool) {
	if s.Empty() {
		return Resolution{}, false
	}
	for _, r := range s.Records {
		if r.Year == year {
			return Resolution{Record: r}, true
		}
	}
	latest := s.Latest()
	return Resolution{
		Record: latest,
		Fallback: &YearFallback{
			PCode:     s.PCode,
			Requested: year,
			Resolved:  latest.Year,
		},
	}, true
}
