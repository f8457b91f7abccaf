// Package warehouse holds the dimensional model: normalized input records,
// dimension and fact rows, the loader that enforces grain uniqueness and
// referential integrity, and the versioned snapshot store.
package warehouse

// Policy controls what happens when a record collides with an existing row
// on the same grain tuple.
type Policy string

const (
	// PolicyReject drops the later duplicate and reports it.
	PolicyReject Policy = "reject"
	// PolicyOverwrite replaces the earlier row with the later one.
	PolicyOverwrite Policy = "overwrite"
)

func (p Policy) Valid() bool {
	return p == PolicyReject || p == PolicyOverwrite
}

// IntroStatus is the closed set of vaccine introduction states.
type IntroStatus string

const (
	IntroYes     IntroStatus = "Yes"
	IntroNo      IntroStatus = "No"
	IntroUnknown IntroStatus = "Unknown"
)

// Normalized records, the output of the normalizer and input to the loader.

type CoverageRecord struct {
	CountryCode        string
	CountryName        string
	Year               int
	AntigenCode        string
	AntigenDescription string
	Coverage           float64
	TargetNumber       int64
	Doses              int64
}

type IncidenceRecord struct {
	CountryCode        string
	CountryName        string
	Year               int
	DiseaseCode        string
	DiseaseDescription string
	Denominator        string
	IncidenceRate      float64
}

type ReportedCasesRecord struct {
	CountryCode        string
	CountryName        string
	Year               int
	DiseaseCode        string
	DiseaseDescription string
	Cases              int64
}

type IntroductionRecord struct {
	CountryCode        string
	CountryName        string
	WHORegion          string
	Year               int
	VaccineDescription string
	Status             IntroStatus
}

type ScheduleRecord struct {
	CountryCode          string
	CountryName          string
	WHORegion            string
	Year                 int
	VaccineCode          string
	VaccineDescription   string
	ScheduleRounds       string
	TargetPop            string
	TargetPopDescription string
	GeoArea              string
	AgeAdministered      string
}

// Batch is one normalized extract snapshot, the unit of a rebuild.
type Batch struct {
	Coverage      []CoverageRecord
	Incidence     []IncidenceRecord
	ReportedCases []ReportedCasesRecord
	Introductions []IntroductionRecord
	Schedules     []ScheduleRecord
}

// Dimension rows. Immutable once built; keyed by their natural code.

type Country struct {
	Code      string
	Name      string
	WHORegion string
}

type Antigen struct {
	Code        string
	Description string
	// Family and DoseOrdinal are derived from the code suffix. Ordinal 0
	// means the code does not carry a single-digit dose suffix and the
	// antigen takes no part in dropout partitions.
	Family      string
	DoseOrdinal int
}

type Disease struct {
	Code        string
	Description string
}

type Year struct {
	Value  int
	Decade int
	Period string
}

// Fact rows. Identity is the grain key embedded in each row.

type CoverageKey struct {
	CountryCode string
	Year        int
	AntigenCode string
}

type CoverageFact struct {
	CoverageKey
	Coverage     float64
	TargetNumber int64
	Doses        int64
}

type DiseaseKey struct {
	CountryCode string
	Year        int
	DiseaseCode string
}

type IncidenceFact struct {
	DiseaseKey
	Denominator   string
	IncidenceRate float64
}

type ReportedCasesFact struct {
	DiseaseKey
	Cases int64
}

// IntroductionKey includes the vaccine description as a degenerate
// dimension: a country introduces many vaccines in the same year.
type IntroductionKey struct {
	CountryCode        string
	Year               int
	VaccineDescription string
}

type IntroductionFact struct {
	IntroductionKey
	Status IntroStatus
}

// ScheduleKey includes the vaccine code as a degenerate dimension.
type ScheduleKey struct {
	CountryCode string
	Year        int
	VaccineCode string
}

type ScheduleFact struct {
	ScheduleKey
	VaccineDescription   string
	ScheduleRounds       string
	TargetPop            string
	TargetPopDescription string
	GeoArea              string
	AgeAdministered      string
}
