package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// Run tracks one asynchronous triage run. The API returns a run id on
// POST /api/v1/runs; the client polls GET /api/v1/runs/{id} until status is
// completed, partial, or failed. A partial run has valid reports for every
// suite that finished plus explicit failure notes for the rest.
type Run struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	Status          string     `db:"status"           json:"status"`
	ResultsPath     string     `db:"results_path"     json:"results_path"`
	SpecsPath       string     `db:"specs_path"       json:"specs_path,omitempty"`
	SuitesRequested int        `db:"suites_requested" json:"suites_requested"`
	SuitesCompleted int        `db:"suites_completed" json:"suites_completed"`
	SuitesFailed    int        `db:"suites_failed"    json:"suites_failed"`
	ErrorMessage    *string    `db:"error_message"    json:"error_message,omitempty"`
	StartedAt       *time.Time `db:"started_at"       json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at"     json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}

// SuiteInput is one unit of orchestrator work: a suite's records plus its
// expectation specs. The owning worker holds it exclusively until the
// result is handed to the collector.
type SuiteInput struct {
	Suite        string           `json:"suite"`
	Container    string           `json:"container"`
	Records      []TestResultRecord `json:"records"`
	Expectations ExpectationSet   `json:"expectations,omitempty"`
}
