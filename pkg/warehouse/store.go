package warehouse

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
)

// Filter narrows fact scans and derived views. Zero values match everything.
type Filter struct {
	YearMin     int
	YearMax     int
	WHORegion   string
	CountryCode string
	AntigenCode string
	DiseaseCode string
}

func (f Filter) matchYear(year int) bool {
	if f.YearMin != 0 && year < f.YearMin {
		return false
	}
	if f.YearMax != 0 && year > f.YearMax {
		return false
	}
	return true
}

// Snapshot is one fully built version of the star schema. It is immutable
// after Rebuild returns it; views are pure functions over a snapshot.
type Snapshot struct {
	Version uint64
	Dims    Dimensions
	Facts   *FactSet
}

// RebuildStats summarizes one rebuild for the caller's report.
type RebuildStats struct {
	FactsLoaded map[string]int
	Conflicts   []*GrainConflictError
	Overwrites  int
}

// Store holds the current star-schema snapshot. Rebuild constructs a whole
// new version and swaps it in atomically: readers keep the prior snapshot
// until the new one is complete, and a failed rebuild leaves it untouched.
type Store struct {
	log     *slog.Logger
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

func NewStore(log *slog.Logger) (*Store, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Store{log: log}, nil
}

// Current returns the latest complete snapshot, or nil before the first
// successful rebuild.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Rebuild derives dimensions from the batch, loads every fact, and swaps
// the finished snapshot in. Grain conflicts under the reject policy are
// collected per record and never abort the rebuild; referential errors do,
// since they indicate an internal ordering bug.
func (s *Store) Rebuild(batch *Batch, policy Policy) (*Snapshot, *RebuildStats, error) {
	dims := BuildDimensions(batch)

	loader, err := NewLoader(LoaderConfig{Logger: s.log, Policy: policy}, dims)
	if err != nil {
		return nil, nil, err
	}

	stats := &RebuildStats{FactsLoaded: make(map[string]int)}
	record := func(table string, err error) error {
		if err == nil {
			stats.FactsLoaded[table]++
			return nil
		}
		var conflict *GrainConflictError
		if errors.As(err, &conflict) {
			stats.Conflicts = append(stats.Conflicts, conflict)
			return nil
		}
		return err
	}

	for _, r := range batch.Coverage {
		if err := record("fact_coverage", loader.LoadCoverage(r)); err != nil {
			return nil, nil, fmt.Errorf("failed to load coverage facts: %w", err)
		}
	}
	for _, r := range batch.Incidence {
		if err := record("fact_incidence", loader.LoadIncidence(r)); err != nil {
			return nil, nil, fmt.Errorf("failed to load incidence facts: %w", err)
		}
	}
	for _, r := range batch.ReportedCases {
		if err := record("fact_reported_cases", loader.LoadReportedCases(r)); err != nil {
			return nil, nil, fmt.Errorf("failed to load reported cases facts: %w", err)
		}
	}
	for _, r := range batch.Introductions {
		if err := record("fact_vaccine_introduction", loader.LoadIntroduction(r)); err != nil {
			return nil, nil, fmt.Errorf("failed to load introduction facts: %w", err)
		}
	}
	for _, r := range batch.Schedules {
		if err := record("fact_vaccine_schedule", loader.LoadSchedule(r)); err != nil {
			return nil, nil, fmt.Errorf("failed to load schedule facts: %w", err)
		}
	}
	stats.Overwrites = loader.Overwrites()

	snap := &Snapshot{
		Version: s.version.Add(1),
		Dims:    dims,
		Facts:   loader.Facts(),
	}
	s.current.Store(snap)

	s.log.Info("store: rebuilt snapshot",
		"version", snap.Version,
		"countries", len(dims.Countries),
		"antigens", len(dims.Antigens),
		"diseases", len(dims.Diseases),
		"years", len(dims.Years),
		"conflicts", len(stats.Conflicts),
		"overwrites", stats.Overwrites,
	)
	return snap, stats, nil
}

// Point lookups by exact key.

func (s *Snapshot) Country(code string) (Country, bool) {
	c, ok := s.Dims.Countries[code]
	return c, ok
}

func (s *Snapshot) Antigen(code string) (Antigen, bool) {
	a, ok := s.Dims.Antigens[code]
	return a, ok
}

func (s *Snapshot) Disease(code string) (Disease, bool) {
	d, ok := s.Dims.Diseases[code]
	return d, ok
}

func (s *Snapshot) Year(value int) (Year, bool) {
	y, ok := s.Dims.Years[value]
	return y, ok
}

func (s *Snapshot) CoverageFact(key CoverageKey) (CoverageFact, bool) {
	f, ok := s.Facts.Coverage[key]
	return f, ok
}

func (s *Snapshot) IncidenceFact(key DiseaseKey) (IncidenceFact, bool) {
	f, ok := s.Facts.Incidence[key]
	return f, ok
}

func (s *Snapshot) ReportedCasesFact(key DiseaseKey) (ReportedCasesFact, bool) {
	f, ok := s.Facts.ReportedCases[key]
	return f, ok
}

func (s *Snapshot) IntroductionFact(key IntroductionKey) (IntroductionFact, bool) {
	f, ok := s.Facts.Introductions[key]
	return f, ok
}

func (s *Snapshot) ScheduleFact(key ScheduleKey) (ScheduleFact, bool) {
	f, ok := s.Facts.Schedules[key]
	return f, ok
}

func (s *Snapshot) matchCountry(f Filter, code string) bool {
	if f.CountryCode != "" && code != f.CountryCode {
		return false
	}
	if f.WHORegion != "" {
		c, ok := s.Dims.Countries[code]
		if !ok || c.WHORegion != f.WHORegion {
			return false
		}
	}
	return true
}

// CoverageFacts scans coverage facts matching the filter, ordered by grain
// key so output never depends on map iteration order.
func (s *Snapshot) CoverageFacts(f Filter) []CoverageFact {
	out := make([]CoverageFact, 0, len(s.Facts.Coverage))
	for key, fact := range s.Facts.Coverage {
		if !f.matchYear(key.Year) || !s.matchCountry(f, key.CountryCode) {
			continue
		}
		if f.AntigenCode != "" && key.AntigenCode != f.AntigenCode {
			continue
		}
		out = append(out, fact)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CoverageKey, out[j].CoverageKey
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.AntigenCode < b.AntigenCode
	})
	return out
}

// IncidenceFacts scans incidence facts matching the filter in key order.
func (s *Snapshot) IncidenceFacts(f Filter) []IncidenceFact {
	out := make([]IncidenceFact, 0, len(s.Facts.Incidence))
	for key, fact := range s.Facts.Incidence {
		if !f.matchYear(key.Year) || !s.matchCountry(f, key.CountryCode) {
			continue
		}
		if f.DiseaseCode != "" && key.DiseaseCode != f.DiseaseCode {
			continue
		}
		out = append(out, fact)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessDiseaseKey(out[i].DiseaseKey, out[j].DiseaseKey)
	})
	return out
}

// ReportedCasesFacts scans reported cases facts matching the filter in key order.
func (s *Snapshot) ReportedCasesFacts(f Filter) []ReportedCasesFact {
	out := make([]ReportedCasesFact, 0, len(s.Facts.ReportedCases))
	for key, fact := range s.Facts.ReportedCases {
		if !f.matchYear(key.Year) || !s.matchCountry(f, key.CountryCode) {
			continue
		}
		if f.DiseaseCode != "" && key.DiseaseCode != f.DiseaseCode {
			continue
		}
		out = append(out, fact)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessDiseaseKey(out[i].DiseaseKey, out[j].DiseaseKey)
	})
	return out
}

// IntroductionFacts scans introduction facts matching the filter in key order.
func (s *Snapshot) IntroductionFacts(f Filter) []IntroductionFact {
	out := make([]IntroductionFact, 0, len(s.Facts.Introductions))
	for key, fact := range s.Facts.Introductions {
		if !f.matchYear(key.Year) || !s.matchCountry(f, key.CountryCode) {
			continue
		}
		out = append(out, fact)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].IntroductionKey, out[j].IntroductionKey
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.VaccineDescription < b.VaccineDescription
	})
	return out
}

// ScheduleFacts scans schedule facts matching the filter in key order.
func (s *Snapshot) ScheduleFacts(f Filter) []ScheduleFact {
	out := make([]ScheduleFact, 0, len(s.Facts.Schedules))
	for key, fact := range s.Facts.Schedules {
		if !f.matchYear(key.Year) || !s.matchCountry(f, key.CountryCode) {
			continue
		}
		out = append(out, fact)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ScheduleKey, out[j].ScheduleKey
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.VaccineCode < b.VaccineCode
	})
	return out
}

func lessDiseaseKey(a, b DiseaseKey) bool {
	if a.CountryCode != b.CountryCode {
		return a.CountryCode < b.CountryCode
	}
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.DiseaseCode < b.DiseaseCode
}
