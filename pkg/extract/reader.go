package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// header maps upper-cased column names to their index in the CSV header row.
type header map[string]int

func (h header) get(row []string, names ...string) string {
	for _, name := range names {
		if idx, ok := h[name]; ok && idx < len(row) {
			return row[idx]
		}
	}
	return ""
}

func readAll(r io.Reader) (header, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headerRow, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}
	h := make(header, len(headerRow))
	for i, name := range headerRow {
		h[strings.ToUpper(strings.TrimSpace(name))] = i
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return h, rows, nil
}

// ReadCoverage decodes a vaccination coverage extract. Column names are
// matched case-insensitively against the WHO extract headers.
func ReadCoverage(r io.Reader) ([]CoverageRecord, error) {
	h, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	records := make([]CoverageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, CoverageRecord{
			CountryCode:        h.get(row, "CODE", "ISO_3_CODE"),
			CountryName:        h.get(row, "NAME", "COUNTRYNAME"),
			Year:               h.get(row, "YEAR"),
			AntigenCode:        h.get(row, "ANTIGEN"),
			AntigenDescription: h.get(row, "ANTIGEN_DESCRIPTION"),
			CoverageCategory:   h.get(row, "COVERAGE_CATEGORY"),
			TargetNumber:       h.get(row, "TARGET_NUMBER"),
			Doses:              h.get(row, "DOSES"),
			Coverage:           h.get(row, "COVERAGE"),
		})
	}
	return records, nil
}

// ReadIncidence decodes a disease incidence extract.
func ReadIncidence(r io.Reader) ([]IncidenceRecord, error) {
	h, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	records := make([]IncidenceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, IncidenceRecord{
			CountryCode:        h.get(row, "CODE", "ISO_3_CODE"),
			CountryName:        h.get(row, "NAME", "COUNTRYNAME"),
			Year:               h.get(row, "YEAR"),
			DiseaseCode:        h.get(row, "DISEASE"),
			DiseaseDescription: h.get(row, "DISEASE_DESCRIPTION"),
			Denominator:        h.get(row, "DENOMINATOR"),
			IncidenceRate:      h.get(row, "INCIDENCE_RATE"),
		})
	}
	return records, nil
}

// ReadReportedCases decodes a reported cases extract.
func ReadReportedCases(r io.Reader) ([]ReportedCasesRecord, error) {
	h, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	records := make([]ReportedCasesRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ReportedCasesRecord{
			CountryCode:        h.get(row, "CODE", "ISO_3_CODE"),
			CountryName:        h.get(row, "NAME", "COUNTRYNAME"),
			Year:               h.get(row, "YEAR"),
			DiseaseCode:        h.get(row, "DISEASE"),
			DiseaseDescription: h.get(row, "DISEASE_DESCRIPTION"),
			Cases:              h.get(row, "CASES"),
		})
	}
	return records, nil
}

// ReadIntroductions decodes a vaccine introduction extract.
func ReadIntroductions(r io.Reader) ([]IntroductionRecord, error) {
	h, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	records := make([]IntroductionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, IntroductionRecord{
			CountryCode:        h.get(row, "ISO_3_CODE", "CODE"),
			CountryName:        h.get(row, "COUNTRYNAME", "NAME"),
			WHORegion:          h.get(row, "WHO_REGION"),
			Year:               h.get(row, "YEAR"),
			VaccineDescription: h.get(row, "DESCRIPTION"),
			Intro:              h.get(row, "INTRO"),
		})
	}
	return records, nil
}

// ReadSchedules decodes a vaccine schedule extract.
func ReadSchedules(r io.Reader) ([]ScheduleRecord, error) {
	h, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	records := make([]ScheduleRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ScheduleRecord{
			CountryCode:          h.get(row, "ISO_3_CODE", "CODE"),
			CountryName:          h.get(row, "COUNTRYNAME", "NAME"),
			WHORegion:            h.get(row, "WHO_REGION"),
			Year:                 h.get(row, "YEAR"),
			VaccineCode:          h.get(row, "VACCINECODE"),
			VaccineDescription:   h.get(row, "VACCINE_DESCRIPTION"),
			ScheduleRounds:       h.get(row, "SCHEDULEROUNDS"),
			TargetPop:            h.get(row, "TARGETPOP"),
			TargetPopDescription: h.get(row, "TARGETPOP_DESCRIPTION"),
			GeoArea:              h.get(row, "GEOAREA"),
			AgeAdministered:      h.get(row, "AGEADMINISTERED"),
			SourceComment:        h.get(row, "SOURCECOMMENT"),
		})
	}
	return records, nil
}

// SnapshotPaths names the extract file for each category. Empty paths are
// skipped, matching the original loaders which tolerate absent datasets.
type SnapshotPaths struct {
	Coverage      string
	Incidence     string
	ReportedCases string
	Introductions string
	Schedules     string
}

// ReadSnapshot reads every configured extract file into one raw snapshot.
// Each file handle is closed before the next is opened.
func ReadSnapshot(paths SnapshotPaths) (*Snapshot, error) {
	snap := &Snapshot{}

	type load struct {
		path string
		read func(io.Reader) error
	}
	loads := []load{
		{paths.Coverage, func(r io.Reader) (err error) { snap.Coverage, err = ReadCoverage(r); return }},
		{paths.Incidence, func(r io.Reader) (err error) { snap.Incidence, err = ReadIncidence(r); return }},
		{paths.ReportedCases, func(r io.Reader) (err error) { snap.ReportedCases, err = ReadReportedCases(r); return }},
		{paths.Introductions, func(r io.Reader) (err error) { snap.Introductions, err = ReadIntroductions(r); return }},
		{paths.Schedules, func(r io.Reader) (err error) { snap.Schedules, err = ReadSchedules(r); return }},
	}
	for _, l := range loads {
		if l.path == "" {
			continue
		}
		if err := readFile(l.path, l.read); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open extract file: %w", err)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
