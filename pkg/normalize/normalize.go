// Package normalize validates and coerces raw extract records into typed,
// deduplicated rows, accumulating a data-quality report for the caller.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/openvaxlabs/vaxmart/pkg/extract"
	"github.com/openvaxlabs/vaxmart/pkg/warehouse"
)

// MinYear is the earliest year any extract record may carry.
const MinYear = 1980

// ValidationError reports a malformed or out-of-domain record field. The
// affected record is skipped; the batch continues.
type ValidationError struct {
	Field  string
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s (%s): %s", e.Field, e.Reason, e.Detail)
}

// Config configures a Normalizer.
type Config struct {
	Logger *slog.Logger

	// MaxCoverage is the upper bound for coverage percentages. Values
	// beyond it are invalid, not truncated. Defaults to 200, which some
	// reporting variations legitimately reach.
	MaxCoverage float64

	// MinYear and MaxYear bound the accepted year range. MaxYear defaults
	// to the current calendar year.
	MinYear int
	MaxYear int

	// Policy decides whether an in-batch duplicate replaces the earlier
	// record (overwrite, logged) or is rejected.
	Policy warehouse.Policy

	// SampleLimit caps the rejected-record samples kept per category.
	SampleLimit int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.MaxCoverage == 0 {
		cfg.MaxCoverage = 200
	}
	if cfg.MaxCoverage < 0 {
		return fmt.Errorf("max coverage must be positive, got %v", cfg.MaxCoverage)
	}
	if cfg.MinYear == 0 {
		cfg.MinYear = MinYear
	}
	if cfg.MaxYear == 0 {
		cfg.MaxYear = time.Now().UTC().Year()
	}
	if cfg.MaxYear < cfg.MinYear {
		return fmt.Errorf("max year %d precedes min year %d", cfg.MaxYear, cfg.MinYear)
	}
	if cfg.Policy == "" {
		cfg.Policy = warehouse.PolicyReject
	}
	if !cfg.Policy.Valid() {
		return fmt.Errorf("invalid policy %q", cfg.Policy)
	}
	if cfg.SampleLimit == 0 {
		cfg.SampleLimit = 10
	}
	return nil
}

// Normalizer turns raw extract records into normalized warehouse records.
// The per-category methods are independent and safe to run concurrently
// with each other; duplicate detection is scoped to a single call.
type Normalizer struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{log: cfg.Logger, cfg: cfg}, nil
}

func (n *Normalizer) year(s string) (int, *ValidationError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "year", Reason: ReasonMissingField, Detail: "year is required"}
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		// Some extracts carry years as floats (e.g. "2021.0").
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, &ValidationError{Field: "year", Reason: ReasonBadYear, Detail: fmt.Sprintf("%q is not an integer year", s)}
		}
		y = int(f)
	}
	if y < n.cfg.MinYear || y > n.cfg.MaxYear {
		return 0, &ValidationError{
			Field:  "year",
			Reason: ReasonYearOutOfRange,
			Detail: fmt.Sprintf("year %d outside [%d, %d]", y, n.cfg.MinYear, n.cfg.MaxYear),
		}
	}
	return y, nil
}

func code(field, s string) (string, *ValidationError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: field, Reason: ReasonMissingField, Detail: field + " is required"}
	}
	return s, nil
}

// measure parses a numeric measure. Empty values mean zero, matching the
// source extracts where an absent measure is reported as blank.
func measure(field, s string, min, max float64) (float64, *ValidationError) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: ReasonBadNumber, Detail: fmt.Sprintf("%q is not a number", s)}
	}
	if v < min || (max > 0 && v > max) {
		return 0, &ValidationError{Field: field, Reason: ReasonOutOfDomain, Detail: fmt.Sprintf("%v outside domain", v)}
	}
	return v, nil
}

func count(field, s string) (int64, *ValidationError) {
	v, verr := measure(field, s, 0, 0)
	if verr != nil {
		return 0, verr
	}
	return int64(v), nil
}

func introStatus(s string) (warehouse.IntroStatus, *ValidationError) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return warehouse.IntroUnknown, nil
	case "yes":
		return warehouse.IntroYes, nil
	case "no":
		return warehouse.IntroNo, nil
	case "unknown":
		return warehouse.IntroUnknown, nil
	default:
		return "", &ValidationError{Field: "intro", Reason: ReasonOutOfDomain, Detail: fmt.Sprintf("status %q not in {Yes, No, Unknown}", s)}
	}
}

// dedupe applies the duplicate policy for a key already seen in this batch.
// It returns whether the record should be kept (appended or replacing).
func dedupe[K comparable](n *Normalizer, seen map[K]int, key K, kind extract.Kind, report *CategoryReport, record any) (int, bool) {
	idx, ok := seen[key]
	if !ok {
		return -1, true
	}
	if n.cfg.Policy == warehouse.PolicyOverwrite {
		n.log.Debug("normalize: overwriting duplicate record", "category", string(kind), "key", fmt.Sprintf("%v", key))
		report.Overwrites++
		return idx, true
	}
	report.reject(&ValidationError{
		Field:  "grain",
		Reason: ReasonDuplicate,
		Detail: fmt.Sprintf("duplicate grain tuple %v", key),
	}, record)
	return -1, false
}

// Coverage normalizes the coverage extract.
func (n *Normalizer) Coverage(raw []extract.CoverageRecord) ([]warehouse.CoverageRecord, *CategoryReport) {
	report := newCategoryReport(n.cfg.SampleLimit)
	out := make([]warehouse.CoverageRecord, 0, len(raw))
	seen := make(map[warehouse.CoverageKey]int, len(raw))

	for _, r := range raw {
		rec, verr := n.coverageRecord(r)
		if verr != nil {
			report.reject(verr, r)
			continue
		}
		key := warehouse.CoverageKey{CountryCode: rec.CountryCode, Year: rec.Year, AntigenCode: rec.AntigenCode}
		idx, keep := dedupe(n, seen, key, extract.KindCoverage, report, r)
		if !keep {
			continue
		}
		if idx >= 0 {
			out[idx] = rec
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
		report.Accepted++
	}
	return out, report
}

func (n *Normalizer) coverageRecord(r extract.CoverageRecord) (warehouse.CoverageRecord, *ValidationError) {
	var rec warehouse.CoverageRecord
	var verr *ValidationError
	if rec.CountryCode, verr = code("country_code", r.CountryCode); verr != nil {
		return rec, verr
	}
	if rec.AntigenCode, verr = code("antigen_code", r.AntigenCode); verr != nil {
		return rec, verr
	}
	if rec.Year, verr = n.year(r.Year); verr != nil {
		return rec, verr
	}
	if rec.Coverage, verr = measure("coverage", r.Coverage, 0, n.cfg.MaxCoverage); verr != nil {
		return rec, verr
	}
	if rec.TargetNumber, verr = count("target_number", r.TargetNumber); verr != nil {
		return rec, verr
	}
	if rec.Doses, verr = count("doses", r.Doses); verr != nil {
		return rec, verr
	}
	rec.CountryName = strings.TrimSpace(r.CountryName)
	rec.AntigenDescription = strings.TrimSpace(r.AntigenDescription)
	return rec, nil
}

// Incidence normalizes the incidence extract.
func (n *Normalizer) Incidence(raw []extract.IncidenceRecord) ([]warehouse.IncidenceRecord, *CategoryReport) {
	report := newCategoryReport(n.cfg.SampleLimit)
	out := make([]warehouse.IncidenceRecord, 0, len(raw))
	seen := make(map[warehouse.DiseaseKey]int, len(raw))

	for _, r := range raw {
		rec, verr := n.incidenceRecord(r)
		if verr != nil {
			report.reject(verr, r)
			continue
		}
		key := warehouse.DiseaseKey{CountryCode: rec.CountryCode, Year: rec.Year, DiseaseCode: rec.DiseaseCode}
		idx, keep := dedupe(n, seen, key, extract.KindIncidence, report, r)
		if !keep {
			continue
		}
		if idx >= 0 {
			out[idx] = rec
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
		report.Accepted++
	}
	return out, report
}

func (n *Normalizer) incidenceRecord(r extract.IncidenceRecord) (warehouse.IncidenceRecord, *ValidationError) {
	var rec warehouse.IncidenceRecord
	var verr *ValidationError
	if rec.CountryCode, verr = code("country_code", r.CountryCode); verr != nil {
		return rec, verr
	}
	if rec.DiseaseCode, verr = code("disease_code", r.DiseaseCode); verr != nil {
		return rec, verr
	}
	if rec.Year, verr = n.year(r.Year); verr != nil {
		return rec, verr
	}
	if rec.IncidenceRate, verr = measure("incidence_rate", r.IncidenceRate, 0, 0); verr != nil {
		return rec, verr
	}
	rec.CountryName = strings.TrimSpace(r.CountryName)
	rec.DiseaseDescription = strings.TrimSpace(r.DiseaseDescription)
	rec.Denominator = strings.TrimSpace(r.Denominator)
	return rec, nil
}

// ReportedCases normalizes the reported cases extract.
func (n *Normalizer) ReportedCases(raw []extract.ReportedCasesRecord) ([]warehouse.ReportedCasesRecord, *CategoryReport) {
	report := newCategoryReport(n.cfg.SampleLimit)
	out := make([]warehouse.ReportedCasesRecord, 0, len(raw))
	seen := make(map[warehouse.DiseaseKey]int, len(raw))

	for _, r := range raw {
		rec, verr := n.reportedCasesRecord(r)
		if verr != nil {
			report.reject(verr, r)
			continue
		}
		key := warehouse.DiseaseKey{CountryCode: rec.CountryCode, Year: rec.Year, DiseaseCode: rec.DiseaseCode}
		idx, keep := dedupe(n, seen, key, extract.KindReportedCases, report, r)
		if !keep {
			continue
		}
		if idx >= 0 {
			out[idx] = rec
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
		report.Accepted++
	}
	return out, report
}

func (n *Normalizer) reportedCasesRecord(r extract.ReportedCasesRecord) (warehouse.ReportedCasesRecord, *ValidationError) {
	var rec warehouse.ReportedCasesRecord
	var verr *ValidationError
	if rec.CountryCode, verr = code("country_code", r.CountryCode); verr != nil {
		return rec, verr
	}
	if rec.DiseaseCode, verr = code("disease_code", r.DiseaseCode); verr != nil {
		return rec, verr
	}
	if rec.Year, verr = n.year(r.Year); verr != nil {
		return rec, verr
	}
	if rec.Cases, verr = count("cases", r.Cases); verr != nil {
		return rec, verr
	}
	rec.CountryName = strings.TrimSpace(r.CountryName)
	rec.DiseaseDescription = strings.TrimSpace(r.DiseaseDescription)
	return rec, nil
}

// Introductions normalizes the vaccine introduction extract.
func (n *Normalizer) Introductions(raw []extract.IntroductionRecord) ([]warehouse.IntroductionRecord, *CategoryReport) {
	report := newCategoryReport(n.cfg.SampleLimit)
	out := make([]warehouse.IntroductionRecord, 0, len(raw))
	seen := make(map[warehouse.IntroductionKey]int, len(raw))

	for _, r := range raw {
		rec, verr := n.introductionRecord(r)
		if verr != nil {
			report.reject(verr, r)
			continue
		}
		key := warehouse.IntroductionKey{CountryCode: rec.CountryCode, Year: rec.Year, VaccineDescription: rec.VaccineDescription}
		idx, keep := dedupe(n, seen, key, extract.KindIntroduction, report, r)
		if !keep {
			continue
		}
		if idx >= 0 {
			out[idx] = rec
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
		report.Accepted++
	}
	return out, report
}

func (n *Normalizer) introductionRecord(r extract.IntroductionRecord) (warehouse.IntroductionRecord, *ValidationError) {
	var rec warehouse.IntroductionRecord
	var verr *ValidationError
	if rec.CountryCode, verr = code("country_code", r.CountryCode); verr != nil {
		return rec, verr
	}
	if rec.VaccineDescription, verr = code("description", r.VaccineDescription); verr != nil {
		return rec, verr
	}
	if rec.Year, verr = n.year(r.Year); verr != nil {
		return rec, verr
	}
	if rec.Status, verr = introStatus(r.Intro); verr != nil {
		return rec, verr
	}
	rec.CountryName = strings.TrimSpace(r.CountryName)
	rec.WHORegion = strings.TrimSpace(r.WHORegion)
	return rec, nil
}

// Schedules normalizes the vaccine schedule extract.
func (n *Normalizer) Schedules(raw []extract.ScheduleRecord) ([]warehouse.ScheduleRecord, *CategoryReport) {
	report := newCategoryReport(n.cfg.SampleLimit)
	out := make([]warehouse.ScheduleRecord, 0, len(raw))
	seen := make(map[warehouse.ScheduleKey]int, len(raw))

	for _, r := range raw {
		rec, verr := n.scheduleRecord(r)
		if verr != nil {
			report.reject(verr, r)
			continue
		}
		key := warehouse.ScheduleKey{CountryCode: rec.CountryCode, Year: rec.Year, VaccineCode: rec.VaccineCode}
		idx, keep := dedupe(n, seen, key, extract.KindSchedule, report, r)
		if !keep {
			continue
		}
		if idx >= 0 {
			out[idx] = rec
			continue
		}
		seen[key] = len(out)
		out = append(out, rec)
		report.Accepted++
	}
	return out, report
}

func (n *Normalizer) scheduleRecord(r extract.ScheduleRecord) (warehouse.ScheduleRecord, *ValidationError) {
	var rec warehouse.ScheduleRecord
	var verr *ValidationError
	if rec.CountryCode, verr = code("country_code", r.CountryCode); verr != nil {
		return rec, verr
	}
	if rec.VaccineCode, verr = code("vaccine_code", r.VaccineCode); verr != nil {
		return rec, verr
	}
	if rec.Year, verr = n.year(r.Year); verr != nil {
		return rec, verr
	}
	rec.CountryName = strings.TrimSpace(r.CountryName)
	rec.WHORegion = strings.TrimSpace(r.WHORegion)
	rec.VaccineDescription = strings.TrimSpace(r.VaccineDescription)
	rec.ScheduleRounds = strings.TrimSpace(r.ScheduleRounds)
	rec.TargetPop = strings.TrimSpace(r.TargetPop)
	rec.TargetPopDescription = strings.TrimSpace(r.TargetPopDescription)
	rec.GeoArea = strings.TrimSpace(r.GeoArea)
	rec.AgeAdministered = strings.TrimSpace(r.AgeAdministered)
	return rec, nil
}

// Snapshot normalizes all five categories sequentially and assembles the
// combined batch and report. The pipeline runs categories concurrently
// instead; this is the convenience path for tools and tests.
func (n *Normalizer) Snapshot(snap *extract.Snapshot) (*warehouse.Batch, *Report) {
	batch := &warehouse.Batch{}
	report := NewReport()

	batch.Coverage, report.Categories[extract.KindCoverage] = n.Coverage(snap.Coverage)
	batch.Incidence, report.Categories[extract.KindIncidence] = n.Incidence(snap.Incidence)
	batch.ReportedCases, report.Categories[extract.KindReportedCases] = n.ReportedCases(snap.ReportedCases)
	batch.Introductions, report.Categories[extract.KindIntroduction] = n.Introductions(snap.Introductions)
	batch.Schedules, report.Categories[extract.KindSchedule] = n.Schedules(snap.Schedules)

	return batch, report
}
