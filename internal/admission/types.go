package admission

import "time"

// AttemptOutcome classifies how a single fetch attempt ended.
type AttemptOutcome string

// Attempt outcomes reported by the supervisor.
const (
	OutcomeSuccess  AttemptOutcome = "success"
	OutcomeFailed   AttemptOutcome = "failed"
	OutcomeTimedOut AttemptOutcome = "timed_out"
)

// FetchAttempt records one try at acquiring markup for a URL.
// Number is 1-based and restarts for every URL.
type FetchAttempt struct {
	URL      string
	Number   int
	Outcome  AttemptOutcome
	Err      error
	Duration time.Duration
}

// RawPage is the markup captured for a URL by the attempt that succeeded.
type RawPage struct {
	SourceURL string
	Markup    string
	Attempts  int
	Static    bool
}

// RawRow is one table row keyed by normalized column name.
// Columns keeps the header order of the source table.
type RawRow struct {
	Columns []string
	Cells   map[string]string
}

// Get returns the cell for the column, or "" when the column is absent.
func (r RawRow) Get(column string) string {
	return r.Cells[column]
}

// ApplicantRecord is a normalized row of the ranking table.
type ApplicantRecord struct {
	SequenceNumber     int
	ApplicantCode      string
	Priority           *float64
	CompetitiveScore   string
	AdmissionCondition string
	ConsentFlag        string
	Position           *int
	IsTarget           bool
}

// RankedRoster is the filtered, positioned subset of records for one URL.
type RankedRoster struct {
	Records []ApplicantRecord
	Target  *ApplicantRecord
}

// Rank returns the target's position in the roster.
func (r RankedRoster) Rank() (int, bool) {
	if r.Target == nil || r.Target.Position == nil {
		return 0, false
	}
	return *r.Target.Position, true
}

// Priority returns the target's priority when the target exists and the
// source cell held a number.
func (r RankedRoster) Priority() (float64, bool) {
	if r.Target == nil || r.Target.Priority == nil {
		return 0, false
	}
	return *r.Target.Priority, true
}

// PageFacts holds the scalar facts pulled out of the raw markup.
type PageFacts struct {
	ProgramName   string
	HasProgram    bool
	BudgetSeats   int
	HasBudgetSeat bool
}

// CheckResult is everything produced for one configured URL.
type CheckResult struct {
	RunID       string
	URL         string
	Page        RawPage
	Roster      RankedRoster
	Facts       PageFacts
	TargetFound bool
	Err         error
}
