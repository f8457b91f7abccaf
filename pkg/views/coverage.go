package views

import (
	"sort"

	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// CoverageRow is one row of the coverage analysis view: a coverage fact
// joined to its dimensions, with the tier label and dose dropout attached.
type CoverageRow struct {
	CountryCode        string
	CountryName        string
	WHORegion          string
	Year               int
	Decade             int
	Period             string
	AntigenCode        string
	AntigenDescription string
	Family             string
	DoseOrdinal        int
	Coverage           float64
	TargetNumber       int64
	Doses              int64
	Tier               string

	// Dropout is coverage of the nearest preceding dose in this
	// (country, year, family) partition minus this dose's coverage. Nil
	// for the first dose present and for codes without a dose ordinal.
	Dropout *float64
}

// CoverageAnalysis computes the coverage view for facts matching the
// filter. Dropout partitions are built before the antigen filter is
// applied, so restricting the query to one dose still sees its
// predecessors.
func (e *Engine) CoverageAnalysis(snap *warehouse.Snapshot, f warehouse.Filter) []CoverageRow {
	scan := f
	scan.AntigenCode = ""
	facts := snap.CoverageFacts(scan)

	rows := make([]CoverageRow, 0, len(facts))
	for _, fact := range facts {
		country, _ := snap.Country(fact.CountryCode)
		antigen, _ := snap.Antigen(fact.AntigenCode)
		year, _ := snap.Year(fact.Year)
		rows = append(rows, CoverageRow{
			CountryCode:        fact.CountryCode,
			CountryName:        country.Name,
			WHORegion:          country.WHORegion,
			Year:               fact.Year,
			Decade:             year.Decade,
			Period:             year.Period,
			AntigenCode:        fact.AntigenCode,
			AntigenDescription: antigen.Description,
			Family:             antigen.Family,
			DoseOrdinal:        antigen.DoseOrdinal,
			Coverage:           fact.Coverage,
			TargetNumber:       fact.TargetNumber,
			Doses:              fact.Doses,
			Tier:               e.cfg.Thresholds.TierFor(fact.Coverage),
		})
	}

	e.computeDropout(rows)

	if f.AntigenCode != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if row.AntigenCode == f.AntigenCode {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	return rows
}

type partitionKey struct {
	countryCode string
	year        int
	family      string
}

// computeDropout orders each (country, year, family) partition by dose
// ordinal and subtracts each dose's coverage from the nearest preceding
// available dose, carrying over ordinal gaps like a last-value window.
func (e *Engine) computeDropout(rows []CoverageRow) {
	partitions := make(map[partitionKey][]int)
	for i, row := range rows {
		if row.DoseOrdinal == 0 {
			continue
		}
		key := partitionKey{countryCode: row.CountryCode, year: row.Year, family: row.Family}
		partitions[key] = append(partitions[key], i)
	}

	for _, idxs := range partitions {
		sort.Slice(idxs, func(a, b int) bool {
			return rows[idxs[a]].DoseOrdinal < rows[idxs[b]].DoseOrdinal
		})
		for i := 1; i < len(idxs); i++ {
			d := rows[idxs[i-1]].Coverage - rows[idxs[i]].Coverage
			rows[idxs[i]].Dropout = &d
		}
	}
}

// RegionalCoverageRow aggregates coverage by WHO region and year.
type RegionalCoverageRow struct {
	WHORegion   string
	Year        int
	AvgCoverage float64
	Records     int
}

// RegionalCoverage compares average coverage across regions, ordered by
// year then region.
func (e *Engine) RegionalCoverage(snap *warehouse.Snapshot, f warehouse.Filter) []RegionalCoverageRow {
	type key struct {
		region string
		year   int
	}
	sums := make(map[key]*RegionalCoverageRow)
	for _, fact := range snap.CoverageFacts(f) {
		country, _ := snap.Country(fact.CountryCode)
		k := key{region: country.WHORegion, year: fact.Year}
		row, ok := sums[k]
		if !ok {
			row = &RegionalCoverageRow{WHORegion: k.region, Year: k.year}
			sums[k] = row
		}
		row.AvgCoverage += fact.Coverage
		row.Records++
	}

	out := make([]RegionalCoverageRow, 0, len(sums))
	for _, row := range sums {
		row.AvgCoverage /= float64(row.Records)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].WHORegion < out[j].WHORegion
	})
	return out
}

// CoverageTrendRow aggregates coverage by year and antigen.
type CoverageTrendRow struct {
	Year        int
	AntigenCode string
	AvgCoverage float64
	Countries   int
}

// CoverageTrend tracks average coverage per antigen over time.
func (e *Engine) CoverageTrend(snap *warehouse.Snapshot, f warehouse.Filter) []CoverageTrendRow {
	type key struct {
		year    int
		antigen string
	}
	sums := make(map[key]*CoverageTrendRow)
	countries := make(map[key]map[string]struct{})
	for _, fact := range snap.CoverageFacts(f) {
		k := key{year: fact.Year, antigen: fact.AntigenCode}
		row, ok := sums[k]
		if !ok {
			row = &CoverageTrendRow{Year: k.year, AntigenCode: k.antigen}
			sums[k] = row
			countries[k] = make(map[string]struct{})
		}
		row.AvgCoverage += fact.Coverage
		countries[k][fact.CountryCode] = struct{}{}
	}

	out := make([]CoverageTrendRow, 0, len(sums))
	for k, row := range sums {
		row.AvgCoverage /= float64(len(countries[k]))
		row.Countries = len(countries[k])
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].AntigenCode < out[j].AntigenCode
	})
	return out
}

// TargetProgressRow reports per antigen how many countries reached the top
// coverage tier in the latest year on record.
type TargetProgressRow struct {
	AntigenCode        string
	AntigenDescription string
	CountriesAtTarget  int
	TotalCountries     int
	PercentAtTarget    float64
}

// TargetProgress measures progress toward the top-tier coverage target for
// the latest year matching the filter.
func (e *Engine) TargetProgress(snap *warehouse.Snapshot, f warehouse.Filter) []TargetProgressRow {
	facts := snap.CoverageFacts(f)
	latest := 0
	for _, fact := range facts {
		if fact.Year > latest {
			latest = fact.Year
		}
	}
	if latest == 0 {
		return nil
	}

	target := e.cfg.Thresholds.TargetCoverage()
	byAntigen := make(map[string]*TargetProgressRow)
	for _, fact := range facts {
		if fact.Year != latest {
			continue
		}
		row, ok := byAntigen[fact.AntigenCode]
		if !ok {
			antigen, _ := snap.Antigen(fact.AntigenCode)
			row = &TargetProgressRow{AntigenCode: fact.AntigenCode, AntigenDescription: antigen.Description}
			byAntigen[fact.AntigenCode] = row
		}
		row.TotalCountries++
		if fact.Coverage >= target {
			row.CountriesAtTarget++
		}
	}

	out := make([]TargetProgressRow, 0, len(byAntigen))
	for _, row := range byAntigen {
		row.PercentAtTarget = float64(row.CountriesAtTarget) * 100 / float64(row.TotalCountries)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PercentAtTarget != out[j].PercentAtTarget {
			return out[i].PercentAtTarget > out[j].PercentAtTarget
		}
		return out[i].AntigenCode < out[j].AntigenCode
	})
	return out
}

// DropoutSummaryRow aggregates average dropout per vaccine family and dose.
type DropoutSummaryRow struct {
	Family      string
	DoseOrdinal int
	AvgDropout  float64
	Samples     int
}

// DropoutByFamily averages dose dropout across countries and years for
// each vaccine family, ordered by family then dose.
func (e *Engine) DropoutByFamily(snap *warehouse.Snapshot, f warehouse.Filter) []DropoutSummaryRow {
	type key struct {
		family  string
		ordinal int
	}
	sums := make(map[key]*DropoutSummaryRow)
	for _, row := range e.CoverageAnalysis(snap, f) {
		if row.Dropout == nil {
			continue
		}
		k := key{family: row.Family, ordinal: row.DoseOrdinal}
		agg, ok := sums[k]
		if !ok {
			agg = &DropoutSummaryRow{Family: k.family, DoseOrdinal: k.ordinal}
			sums[k] = agg
		}
		agg.AvgDropout += *row.Dropout
		agg.Samples++
	}

	out := make([]DropoutSummaryRow, 0, len(sums))
	for _, agg := range sums {
		agg.AvgDropout /= float64(agg.Samples)
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family < out[j].Family
		}
		return out[i].DoseOrdinal < out[j].DoseOrdinal
	})
	return out
}
