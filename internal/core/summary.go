package core

import "time"

// ReportKind selects which outputs a report run produces.
type ReportKind string

const (
	KindSummary ReportKind = "summary"
	KindTrend   ReportKind = "trend"
	KindAll     ReportKind = "all"
)

// IsValid returns true if the kind is a known report kind.
func (k ReportKind) IsValid() bool {
	switch k {
	case KindSummary, KindTrend, KindAll:
		return true
	default:
		return false
	}
}

// Includes reports whether a run of kind k produces the output other.
func (k ReportKind) Includes(other ReportKind) bool {
	return k == KindAll || k == other
}

// Run statuses recorded in the run log.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ReportRun is one execution of the reporting pipeline.
type ReportRun struct {
	ID          string
	Kind        ReportKind
	Status      string
	Today       Date
	StartedAt   time.Time
	FinishedAt  time.Time
	SummaryRows int
	TrendRows   int
	Error       string
}
