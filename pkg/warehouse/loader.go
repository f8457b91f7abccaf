package warehouse

import (
	"errors"
	"fmt"
	"log/slog"
)

// FactSet holds every fact table of one snapshot, keyed by grain tuple.
type FactSet struct {
	Coverage      map[CoverageKey]CoverageFact
	Incidence     map[DiseaseKey]IncidenceFact
	ReportedCases map[DiseaseKey]ReportedCasesFact
	Introductions map[IntroductionKey]IntroductionFact
	Schedules     map[ScheduleKey]ScheduleFact
}

func newFactSet() *FactSet {
	return &FactSet{
		Coverage:      make(map[CoverageKey]CoverageFact),
		Incidence:     make(map[DiseaseKey]IncidenceFact),
		ReportedCases: make(map[DiseaseKey]ReportedCasesFact),
		Introductions: make(map[IntroductionKey]IntroductionFact),
		Schedules:     make(map[ScheduleKey]ScheduleFact),
	}
}

// LoaderConfig configures a fact loader.
type LoaderConfig struct {
	Logger *slog.Logger
	Policy Policy
}

func (cfg *LoaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	if !cfg.Policy.Valid() {
		return fmt.Errorf("invalid policy %q", cfg.Policy)
	}
	return nil
}

// Loader resolves dimension references and appends fact rows, enforcing
// grain uniqueness under the configured policy.
type Loader struct {
	log    *slog.Logger
	policy Policy
	dims   Dimensions
	facts  *FactSet

	overwrites int
}

func NewLoader(cfg LoaderConfig, dims Dimensions) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{
		log:    cfg.Logger,
		policy: cfg.Policy,
		dims:   dims,
		facts:  newFactSet(),
	}, nil
}

// Facts returns the fact tables loaded so far.
func (l *Loader) Facts() *FactSet {
	return l.facts
}

// Overwrites returns how many rows were displaced under the overwrite policy.
func (l *Loader) Overwrites() int {
	return l.overwrites
}

func (l *Loader) resolveCountry(code string) error {
	if _, ok := l.dims.Countries[code]; !ok {
		return &ReferentialError{Dimension: "country", Code: code}
	}
	return nil
}

func (l *Loader) resolveYear(year int) error {
	if _, ok := l.dims.Years[year]; !ok {
		return &ReferentialError{Dimension: "year", Code: fmt.Sprintf("%d", year)}
	}
	return nil
}

func (l *Loader) resolveAntigen(code string) error {
	if _, ok := l.dims.Antigens[code]; !ok {
		return &ReferentialError{Dimension: "antigen", Code: code}
	}
	return nil
}

func (l *Loader) resolveDisease(code string) error {
	if _, ok := l.dims.Diseases[code]; !ok {
		return &ReferentialError{Dimension: "disease", Code: code}
	}
	return nil
}

// conflict applies the grain policy for an occupied key. Under reject the
// row is not written and the error is surfaced; under overwrite the
// replacement is logged and the write proceeds.
func (l *Loader) conflict(table string, key string) (bool, error) {
	if l.policy == PolicyReject {
		return false, &GrainConflictError{Table: table, Key: key}
	}
	l.overwrites++
	l.log.Debug("loader: overwriting fact row", "table", table, "key", key)
	return true, nil
}

func (l *Loader) LoadCoverage(r CoverageRecord) error {
	if err := l.resolveCountry(r.CountryCode); err != nil {
		return err
	}
	if err := l.resolveYear(r.Year); err != nil {
		return err
	}
	if err := l.resolveAntigen(r.AntigenCode); err != nil {
		return err
	}
	key := CoverageKey{CountryCode: r.CountryCode, Year: r.Year, AntigenCode: r.AntigenCode}
	if _, exists := l.facts.Coverage[key]; exists {
		write, err := l.conflict("fact_coverage", fmt.Sprintf("%s/%d/%s", key.CountryCode, key.Year, key.AntigenCode))
		if !write {
			return err
		}
	}
	l.facts.Coverage[key] = CoverageFact{
		CoverageKey:  key,
		Coverage:     r.Coverage,
		TargetNumber: r.TargetNumber,
		Doses:        r.Doses,
	}
	return nil
}

func (l *Loader) LoadIncidence(r IncidenceRecord) error {
	if err := l.resolveCountry(r.CountryCode); err != nil {
		return err
	}
	if err := l.resolveYear(r.Year); err != nil {
		return err
	}
	if err := l.resolveDisease(r.DiseaseCode); err != nil {
		return err
	}
	key := DiseaseKey{CountryCode: r.CountryCode, Year: r.Year, DiseaseCode: r.DiseaseCode}
	if _, exists := l.facts.Incidence[key]; exists {
		write, err := l.conflict("fact_incidence", fmt.Sprintf("%s/%d/%s", key.CountryCode, key.Year, key.DiseaseCode))
		if !write {
			return err
		}
	}
	l.facts.Incidence[key] = IncidenceFact{
		DiseaseKey:    key,
		Denominator:   r.Denominator,
		IncidenceRate: r.IncidenceRate,
	}
	return nil
}

func (l *Loader) LoadReportedCases(r ReportedCasesRecord) error {
	if err := l.resolveCountry(r.CountryCode); err != nil {
		return err
	}
	if err := l.resolveYear(r.Year); err != nil {
		return err
	}
	if err := l.resolveDisease(r.DiseaseCode); err != nil {
		return err
	}
	key := DiseaseKey{CountryCode: r.CountryCode, Year: r.Year, DiseaseCode: r.DiseaseCode}
	if _, exists := l.facts.ReportedCases[key]; exists {
		write, err := l.conflict("fact_reported_cases", fmt.Sprintf("%s/%d/%s", key.CountryCode, key.Year, key.DiseaseCode))
		if !write {
			return err
		}
	}
	l.facts.ReportedCases[key] = ReportedCasesFact{DiseaseKey: key, Cases: r.Cases}
	return nil
}

func (l *Loader) LoadIntroduction(r IntroductionRecord) error {
	if err := l.resolveCountry(r.CountryCode); err != nil {
		return err
	}
	if err := l.resolveYear(r.Year); err != nil {
		return err
	}
	key := IntroductionKey{CountryCode: r.CountryCode, Year: r.Year, VaccineDescription: r.VaccineDescription}
	if _, exists := l.facts.Introductions[key]; exists {
		write, err := l.conflict("fact_vaccine_introduction", fmt.Sprintf("%s/%d/%s", key.CountryCode, key.Year, key.VaccineDescription))
		if !write {
			return err
		}
	}
	l.facts.Introductions[key] = IntroductionFact{IntroductionKey: key, Status: r.Status}
	return nil
}

func (l *Loader) LoadSchedule(r ScheduleRecord) error {
	if err := l.resolveCountry(r.CountryCode); err != nil {
		return err
	}
	if err := l.resolveYear(r.Year); err != nil {
		return err
	}
	key := ScheduleKey{CountryCode: r.CountryCode, Year: r.Year, VaccineCode: r.VaccineCode}
	if _, exists := l.facts.Schedules[key]; exists {
		write, err := l.conflict("fact_vaccine_schedule", fmt.Sprintf("%s/%d/%s", key.CountryCode, key.Year, key.VaccineCode))
		if !write {
			return err
		}
	}
	l.facts.Schedules[key] = ScheduleFact{
		ScheduleKey:          key,
		VaccineDescription:   r.VaccineDescription,
		ScheduleRounds:       r.ScheduleRounds,
		TargetPop:            r.TargetPop,
		TargetPopDescription: r.TargetPopDescription,
		GeoArea:              r.GeoArea,
		AgeAdministered:      r.AgeAdministered,
	}
	return nil
}
