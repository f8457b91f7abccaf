package normalize

import (
	"time"

	"github.com/openvaxlabs/vaxmart/pkg/extract"
)

// Reason is the closed set of rejection reasons tracked by the quality
// report.
type Reason string

const (
	ReasonMissingField   Reason = "missing_field"
	ReasonBadYear        Reason = "bad_year"
	ReasonYearOutOfRange Reason = "year_out_of_range"
	ReasonBadNumber      Reason = "bad_number"
	ReasonOutOfDomain    Reason = "out_of_domain"
	ReasonDuplicate      Reason = "duplicate"
)

// RejectedSample is one rejected record kept for external reporting.
type RejectedSample struct {
	Reason Reason
	Field  string
	Detail string
	Record any
}

// CategoryReport tallies one extract category.
type CategoryReport struct {
	Accepted    int
	Rejected    map[Reason]int
	Samples     []RejectedSample
	Overwrites  int
	sampleLimit int
}

func newCategoryReport(sampleLimit int) *CategoryReport {
	return &CategoryReport{
		Rejected:    make(map[Reason]int),
		sampleLimit: sampleLimit,
	}
}

func (r *CategoryReport) reject(verr *ValidationError, record any) {
	r.Rejected[verr.Reason]++
	if len(r.Samples) < r.sampleLimit {
		r.Samples = append(r.Samples, RejectedSample{
			Reason: verr.Reason,
			Field:  verr.Field,
			Detail: verr.Detail,
			Record: record,
		})
	}
}

// RejectedTotal sums rejections across reasons.
func (r *CategoryReport) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Report is the data-quality report for one normalized snapshot. It is
// handed back to the caller and never persisted in the store.
type Report struct {
	StartedAt  time.Time
	Duration   time.Duration
	Categories map[extract.Kind]*CategoryReport
}

func NewReport() *Report {
	return &Report{Categories: make(map[extract.Kind]*CategoryReport)}
}

// Accepted sums accepted records across categories.
func (r *Report) Accepted() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Accepted
	}
	return total
}

// Rejected sums rejected records across categories.
func (r *Report) Rejected() int {
	total := 0
	for _, c := range r.Categories {
		total += c.RejectedTotal()
	}
	return total
}
