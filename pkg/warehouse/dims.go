package warehouse

import (
	"sort"
)

// Year period buckets, matching the reporting eras used by the source
// extracts. CurrentEraStart separates historical from current years.
const (
	PeriodPre2000   = "Pre-2000"
	Period2000s     = "2000-2010"
	Period2010s     = "2010-2020"
	Period2020Plus  = "2020+"
	CurrentEraStart = 2000
)

// PeriodFor classifies a year into its reporting period.
func PeriodFor(year int) string {
	switch {
	case year < 2000:
		return PeriodPre2000
	case year < 2010:
		return Period2000s
	case year < 2020:
		return Period2010s
	default:
		return Period2020Plus
	}
}

// DecadeFor returns the decade a year belongs to (1987 -> 1980).
func DecadeFor(year int) int {
	return year / 10 * 10
}

// Dimensions is the closed set of dimension rows referenced by any fact in
// a batch. Keys are the natural business codes.
type Dimensions struct {
	Countries map[string]Country
	Antigens  map[string]Antigen
	Diseases  map[string]Disease
	Years     map[int]Year
}

// BuildDimensions derives every dimension row referenced by the batch.
// Rebuilding from the same batch yields identical rows: attributes are taken
// first-wins in record order, the year dimension covers the closed observed
// range with no gaps, and nothing depends on wall-clock time.
func BuildDimensions(batch *Batch) Dimensions {
	dims := Dimensions{
		Countries: make(map[string]Country),
		Antigens:  make(map[string]Antigen),
		Diseases:  make(map[string]Disease),
		Years:     make(map[int]Year),
	}

	minYear, maxYear := 0, 0
	seeYear := func(y int) {
		if minYear == 0 || y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}

	country := func(code, name, region string) {
		c, ok := dims.Countries[code]
		if !ok {
			c = Country{Code: code}
		}
		if c.Name == "" {
			c.Name = name
		}
		if c.WHORegion == "" {
			c.WHORegion = region
		}
		dims.Countries[code] = c
	}

	for _, r := range batch.Coverage {
		country(r.CountryCode, r.CountryName, "")
		seeYear(r.Year)
		if _, ok := dims.Antigens[r.AntigenCode]; !ok {
			a := Antigen{Code: r.AntigenCode, Description: r.AntigenDescription}
			a.Family, a.DoseOrdinal, _ = ParseDoseCode(r.AntigenCode)
			dims.Antigens[r.AntigenCode] = a
		}
	}
	for _, r := range batch.Incidence {
		country(r.CountryCode, r.CountryName, "")
		seeYear(r.Year)
		if _, ok := dims.Diseases[r.DiseaseCode]; !ok {
			dims.Diseases[r.DiseaseCode] = Disease{Code: r.DiseaseCode, Description: r.DiseaseDescription}
		}
	}
	for _, r := range batch.ReportedCases {
		country(r.CountryCode, r.CountryName, "")
		seeYear(r.Year)
		if _, ok := dims.Diseases[r.DiseaseCode]; !ok {
			dims.Diseases[r.DiseaseCode] = Disease{Code: r.DiseaseCode, Description: r.DiseaseDescription}
		}
	}
	for _, r := range batch.Introductions {
		country(r.CountryCode, r.CountryName, r.WHORegion)
		seeYear(r.Year)
	}
	for _, r := range batch.Schedules {
		country(r.CountryCode, r.CountryName, r.WHORegion)
		seeYear(r.Year)
	}

	for y := minYear; y != 0 && y <= maxYear; y++ {
		dims.Years[y] = Year{Value: y, Decade: DecadeFor(y), Period: PeriodFor(y)}
	}

	return dims
}

// CountryCodes returns the country codes in sorted order.
func (d Dimensions) CountryCodes() []string {
	return sortedKeys(d.Countries)
}

// AntigenCodes returns the antigen codes in sorted order.
func (d Dimensions) AntigenCodes() []string {
	return sortedKeys(d.Antigens)
}

// DiseaseCodes returns the disease codes in sorted order.
func (d Dimensions) DiseaseCodes() []string {
	return sortedKeys(d.Diseases)
}

// YearValues returns the year values in ascending order.
func (d Dimensions) YearValues() []int {
	years := make([]int, 0, len(d.Years))
	for y := range d.Years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
