package views

import (
	"sort"

	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

const (
	PriorityHigh   = "High Priority"
	PriorityMedium = "Medium Priority"
	PriorityLow    = "Low Priority"
)

// PriorityRow scores one country for intervention priority from its average
// coverage and average incidence across the filtered facts. AvgIncidence is
// nil when the country has no incidence facts; a missing incidence never
// satisfies the incidence condition.
type PriorityRow struct {
	CountryCode  string
	CountryName  string
	WHORegion    string
	AvgCoverage  float64
	AvgIncidence *float64
	Priority     string
}

// PriorityScoring ranks countries by the configured priority rule: low
// coverage and high incidence together score High, either alone Medium,
// neither Low. Ordered High before Medium before Low, then by ascending
// coverage within a band.
func (e *Engine) PriorityScoring(snap *warehouse.Snapshot, f warehouse.Filter) []PriorityRow {
	type agg struct {
		coverageSum   float64
		coverageCount int
		incidenceSum  float64
		incidenceN    int
	}
	sums := make(map[string]*agg)
	get := func(code string) *agg {
		a, ok := sums[code]
		if !ok {
			a = &agg{}
			sums[code] = a
		}
		return a
	}
	for _, fact := range snap.CoverageFacts(f) {
		a := get(fact.CountryCode)
		a.coverageSum += fact.Coverage
		a.coverageCount++
	}
	for _, fact := range snap.IncidenceFacts(f) {
		a := get(fact.CountryCode)
		a.incidenceSum += fact.IncidenceRate
		a.incidenceN++
	}

	rule := e.cfg.Thresholds.Priority
	rows := make([]PriorityRow, 0, len(sums))
	for code, a := range sums {
		if a.coverageCount == 0 {
			// Incidence with no coverage at all cannot be scored
			// against a coverage rule.
			continue
		}
		country, _ := snap.Country(code)
		row := PriorityRow{
			CountryCode: code,
			CountryName: country.Name,
			WHORegion:   country.WHORegion,
			AvgCoverage: a.coverageSum / float64(a.coverageCount),
		}
		lowCoverage := row.AvgCoverage < rule.CoverageBelow
		highIncidence := false
		if a.incidenceN > 0 {
			avg := a.incidenceSum / float64(a.incidenceN)
			row.AvgIncidence = &avg
			highIncidence = avg > rule.IncidenceAbove
		}
		switch {
		case lowCoverage && highIncidence:
			row.Priority = PriorityHigh
		case lowCoverage || highIncidence:
			row.Priority = PriorityMedium
		default:
			row.Priority = PriorityLow
		}
		rows = append(rows, row)
	}

	rank := map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
	sort.Slice(rows, func(i, j int) bool {
		if rank[rows[i].Priority] != rank[rows[j].Priority] {
			return rank[rows[i].Priority] < rank[rows[j].Priority]
		}
		if rows[i].AvgCoverage != rows[j].AvgCoverage {
			return rows[i].AvgCoverage < rows[j].AvgCoverage
		}
		return rows[i].CountryCode < rows[j].CountryCode
	})
	return rows
}
