package insight

import (
	"strconv"

	"golang.org/x/text/message"
)

// Tier thresholds for headlines.
const (
	youthRapidGrowth  = 0.30
	youthSteadyGrowth = 0.15
	agingRapidGrowth  = 0.50
	agingSignificant  = 0.30
)

// Secondary signal thresholds.
const (
	lowWorkShare         = 0.55
	earlyAgingShare      = 0.12
	earlyAgingGrowth     = 0.25
	youthMomentumShare   = 0.38
	youthMomentumGrowth  = 0.20
	contractionThreshold = -0.05
	rapidGrowthThreshold = 0.10
)

// YouthPace returns the headline pace phrase for a youth growth rate.
func YouthPace(youthGrowth float64) string {
	switch {
	case youthGrowth > youthRapidGrowth:
		return "rapidly expanding"
	case youthGrowth > youthSteadyGrowth:
		return "steadily growing"
	default:
		return "stable"
	}
}

// AgingSeverity returns the headline severity adverb for an elderly growth rate.
func AgingSeverity(oldGrowth float64) string {
	switch {
	case oldGrowth > agingRapidGrowth:
		return "rapidly"
	case oldGrowth > agingSignificant:
		return "significantly"
	default:
		return "gradually"
	}
}

func pct(v float64) float64 {
	return v * 100
}

// yr keeps years out of the printer's digit grouping.
func yr(y int) string {
	return strconv.Itoa(y)
}

func composeHeadline(p *message.Printer, name string, cat Category, m Metrics) string {
	switch cat {
	case CategoryYouthPotential:
		return p.Sprintf("%s has a %s young population: residents under 25 make up %.1f%% of the total in %s, a %+.1f%% change since %s.",
			name, YouthPace(m.YouthGrowth), pct(m.YouthShare), yr(m.Year), pct(m.YouthGrowth), yr(m.BaselineYear))
	case CategoryAgingPressure:
		return p.Sprintf("%s is aging %s: the population aged 60 and over changed by %+.1f%% since %s and accounts for %.1f%% of residents in %s.",
			name, AgingSeverity(m.OldGrowth), pct(m.OldGrowth), yr(m.BaselineYear), pct(m.OldShare), yr(m.Year))
	default:
		return p.Sprintf("%s holds a working-age advantage: people aged 25 to 59 make up %.1f%% of the population in %s (%d of %d residents).",
			name, pct(m.WorkShare), yr(m.Year), m.Work, m.Total)
	}
}

func policyBody(p *message.Printer, cat Category, m Metrics) string {
	switch cat {
	case CategoryYouthPotential:
		body := "Policy priorities: expand school and university capacity, invest in maternal and child health, " +
			"and build vocational pathways for the cohorts about to enter the labor market."
		if m.WorkShare < lowWorkShare {
			body += p.Sprintf(" With only %.1f%% of residents of working age, job creation has to keep pace with young people coming of age.",
				pct(m.WorkShare))
		}
		return body
	case CategoryAgingPressure:
		return "Policy priorities: strengthen primary and geriatric health care, extend pension and social protection " +
			"coverage, and support family and community based care for older residents."
	default:
		return "Policy priorities: turn the large working-age population into growth through employment programs, " +
			"access to credit for small enterprises, and skills training matched to local demand."
	}
}

// secondaryNotes evaluates every signal independently, in fixed order.
func secondaryNotes(p *message.Printer, m Metrics) []string {
	var notes []string
	if m.WorkShare < lowWorkShare {
		notes = append(notes, p.Sprintf("constrained absorption capacity, with a working-age share of %.1f%%", pct(m.WorkShare)))
	}
	if m.OldShare < earlyAgingShare && m.OldGrowth > earlyAgingGrowth {
		notes = append(notes, p.Sprintf("early aging signal, as the 60+ population grew %.1f%% while still under %.0f%% of residents",
			pct(m.OldGrowth), pct(earlyAgingShare)))
	}
	if m.YouthShare > youthMomentumShare || m.YouthGrowth > youthMomentumGrowth {
		notes = append(notes, p.Sprintf("strong youth momentum, with under-25s at %.1f%% of residents (%+.1f%% since %s)",
			pct(m.YouthShare), pct(m.YouthGrowth), yr(m.BaselineYear)))
	}
	if m.TotalGrowth < contractionThreshold {
		notes = append(notes, p.Sprintf("population contraction of %.1f%% since %s", pct(-m.TotalGrowth), yr(m.BaselineYear)))
	}
	if m.TotalGrowth > rapidGrowthThreshold {
		notes = append(notes, p.Sprintf("rapid population growth of %.1f%% since %s, straining services", pct(m.TotalGrowth), yr(m.BaselineYear)))
	}
	return notes
}
