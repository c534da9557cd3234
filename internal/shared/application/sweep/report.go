// Package sweep carries the reporting types shared by all periodic sweep
// jobs: escalation, retries, liquidation, and reminders.
package sweep

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus classifies what a sweep did with one item.
type OutcomeStatus string

const (
	// OutcomeActed means at least one action was taken.
	OutcomeActed OutcomeStatus = "acted"
	// OutcomeSkipped means the item needed nothing this sweep, or a
	// prerequisite was missing (a designed shortfall, not an error).
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFailed means the item errored; sibling items are unaffected.
	OutcomeFailed OutcomeStatus = "failed"
)

// ItemOutcome is the per-item result of a sweep.
type ItemOutcome struct {
	ID      uuid.UUID
	Status  OutcomeStatus
	Actions []string
	Error   string
}

// Report aggregates one sweep run. Per-item failures are isolated here and
// never abort sibling items.
type Report struct {
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Acted      int
	Skipped    int
	Failed     int
	Outcomes   []ItemOutcome
}

// NewReport starts a report for one sweep run.
func NewReport(kind string, startedAt time.Time) *Report {
	return &Report{Kind: kind, StartedAt: startedAt}
}

// Add records one item outcome.
func (r *Report) Add(outcome ItemOutcome) {
	r.Scanned++
	switch outcome.Status {
	case OutcomeActed:
		r.Acted++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, outcome)
}
