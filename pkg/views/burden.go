package views

import (
	"sort"

	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// BurdenRow is one row of the disease burden view: incidence joined to
// dimensions and reported cases, with a severity label from the configured
// bands. IncidenceRate is nil when the country-year-disease has reported
// cases but no incidence fact; such rows carry no severity label and are
// excluded from severity aggregation. A zero rate is a real observation and
// classifies normally.
type BurdenRow struct {
	CountryCode        string
	CountryName        string
	WHORegion          string
	Year               int
	Decade             int
	DiseaseCode        string
	DiseaseDescription string
	IncidenceRate      *float64
	Cases              *int64
	Severity           string
}

// DiseaseBurden computes the burden view for facts matching the filter,
// ordered by (country, year, disease).
func (e *Engine) DiseaseBurden(snap *warehouse.Snapshot, f warehouse.Filter) []BurdenRow {
	keys := make(map[warehouse.DiseaseKey]struct{})
	for _, fact := range snap.IncidenceFacts(f) {
		keys[fact.DiseaseKey] = struct{}{}
	}
	for _, fact := range snap.ReportedCasesFacts(f) {
		keys[fact.DiseaseKey] = struct{}{}
	}

	ordered := make([]warehouse.DiseaseKey, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.DiseaseCode < b.DiseaseCode
	})

	rows := make([]BurdenRow, 0, len(ordered))
	for _, key := range ordered {
		country, _ := snap.Country(key.CountryCode)
		disease, _ := snap.Disease(key.DiseaseCode)
		year, _ := snap.Year(key.Year)
		row := BurdenRow{
			CountryCode:        key.CountryCode,
			CountryName:        country.Name,
			WHORegion:          country.WHORegion,
			Year:               key.Year,
			Decade:             year.Decade,
			DiseaseCode:        key.DiseaseCode,
			DiseaseDescription: disease.Description,
		}
		if fact, ok := snap.IncidenceFact(key); ok {
			rate := fact.IncidenceRate
			row.IncidenceRate = &rate
			row.Severity = e.cfg.Thresholds.SeverityFor(rate)
		}
		if fact, ok := snap.ReportedCasesFact(key); ok {
			cases := fact.Cases
			row.Cases = &cases
		}
		rows = append(rows, row)
	}
	return rows
}

// RegionalBurdenRow aggregates disease burden by WHO region.
type RegionalBurdenRow struct {
	WHORegion          string
	DiseaseCode        string
	DiseaseDescription string
	AvgIncidenceRate   float64
	TotalCases         int64
	Countries          int
}

// RegionalBurden averages incidence and totals cases by region and
// disease, ordered by average incidence descending. Rows without an
// incidence observation contribute cases but not to the average.
func (e *Engine) RegionalBurden(snap *warehouse.Snapshot, f warehouse.Filter) []RegionalBurdenRow {
	type key struct {
		region  string
		disease string
	}
	type agg struct {
		row       RegionalBurdenRow
		rateSum   float64
		rateCount int
		countries map[string]struct{}
	}
	sums := make(map[key]*agg)

	for _, row := range e.DiseaseBurden(snap, f) {
		k := key{region: row.WHORegion, disease: row.DiseaseCode}
		a, ok := sums[k]
		if !ok {
			a = &agg{
				row: RegionalBurdenRow{
					WHORegion:          k.region,
					DiseaseCode:        k.disease,
					DiseaseDescription: row.DiseaseDescription,
				},
				countries: make(map[string]struct{}),
			}
			sums[k] = a
		}
		if row.IncidenceRate != nil {
			a.rateSum += *row.IncidenceRate
			a.rateCount++
		}
		if row.Cases != nil {
			a.row.TotalCases += *row.Cases
		}
		a.countries[row.CountryCode] = struct{}{}
	}

	out := make([]RegionalBurdenRow, 0, len(sums))
	for _, a := range sums {
		if a.rateCount > 0 {
			a.row.AvgIncidenceRate = a.rateSum / float64(a.rateCount)
		}
		a.row.Countries = len(a.countries)
		out = append(out, a.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgIncidenceRate != out[j].AvgIncidenceRate {
			return out[i].AvgIncidenceRate > out[j].AvgIncidenceRate
		}
		if out[i].WHORegion != out[j].WHORegion {
			return out[i].WHORegion < out[j].WHORegion
		}
		return out[i].DiseaseCode < out[j].DiseaseCode
	})
	return out
}
