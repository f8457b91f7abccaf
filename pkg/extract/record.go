// Package extract defines the raw record types handed to the pipeline by the
// extract readers, one tagged shape per source category. Fields are kept as
// strings; typing and validation happen in the normalizer.
package extract

// Kind identifies which extract category a record came from.
type Kind string

const (
	KindCoverage      Kind = "coverage"
	KindIncidence     Kind = "incidence"
	KindReportedCases Kind = "reported_cases"
	KindIntroduction  Kind = "vaccine_introduction"
	KindSchedule      Kind = "vaccine_schedule"
)

// Kinds lists all extract categories in pipeline order.
func Kinds() []Kind {
	return []Kind{KindCoverage, KindIncidence, KindReportedCases, KindIntroduction, KindSchedule}
}

// CoverageRecord is one row of the vaccination coverage extract.
type CoverageRecord struct {
	CountryCode        string
	CountryName        string
	Year               string
	AntigenCode        string
	AntigenDescription string
	CoverageCategory   string
	TargetNumber       string
	Doses              string
	Coverage           string
}

// IncidenceRecord is one row of the disease incidence extract.
type IncidenceRecord struct {
	CountryCode        string
	CountryName        string
	Year               string
	DiseaseCode        string
	DiseaseDescription string
	Denominator        string
	IncidenceRate      string
}

// ReportedCasesRecord is one row of the reported cases extract.
type ReportedCasesRecord struct {
	CountryCode        string
	CountryName        string
	Year               string
	DiseaseCode        string
	DiseaseDescription string
	Cases              string
}

// IntroductionRecord is one row of the vaccine introduction extract.
type IntroductionRecord struct {
	CountryCode        string
	CountryName        string
	WHORegion          string
	Year               string
	VaccineDescription string
	Intro              string
}

// ScheduleRecord is one row of the vaccine schedule extract.
type ScheduleRecord struct {
	CountryCode          string
	CountryName          string
	WHORegion            string
	Year                 string
	VaccineCode          string
	VaccineDescription   string
	ScheduleRounds       string
	TargetPop            string
	TargetPopDescription string
	GeoArea              string
	AgeAdministered      string
	SourceComment        string
}

// Snapshot holds one full set of raw extract records, the unit of a rebuild.
type Snapshot struct {
	Coverage      []CoverageRecord
	Incidence     []IncidenceRecord
	ReportedCases []ReportedCasesRecord
	Introductions []IntroductionRecord
	Schedules     []ScheduleRecord
}
