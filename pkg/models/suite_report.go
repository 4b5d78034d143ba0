package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SuiteStatusAnalyzed = "analyzed"
	SuiteStatusFailed   = "failed"
)

// VerdictCounts holds the per-verdict tallies for one suite.
type VerdictCounts struct {
	TruePositive  int `json:"true_positive"`
	TrueNegative  int `json:"true_negative"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
}

// Total returns the sum of all four tallies. It must equal the suite's
// record count: no record dropped or double-counted.
func (c VerdictCounts) Total() int {
	return c.TruePositive + c.TrueNegative + c.FalsePositive + c.FalseNegative
}

// VerdictPercentages holds the rendered one-decimal percentages matching
// VerdictCounts. Strings, so two builds of the same verdict set are
// byte-identical.
type VerdictPercentages struct {
	TruePositive  string `json:"true_positive"`
	TrueNegative  string `json:"true_negative"`
	FalsePositive string `json:"false_positive"`
	FalseNegative string `json:"false_negative"`
}

// DetailRow is one line of a suite report's detail table, in input record order.
type DetailRow struct {
	Test     string  `json:"test"`
	Recorded string  `json:"recorded"`
	Verdict  Verdict `json:"verdict"`
	Reason   string  `json:"reason"`
}

// RootCause is one distinct classification reason with its frequency.
type RootCause struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// NextStep is a recommended remediation, ordered by estimated impact.
type NextStep struct {
	Action   string `json:"action"`
	Affected int    `json:"affected"`
}

// SuiteReport is the derived, read-only aggregate for one suite. It is a
// pure projection of its input classifications and is regenerable at any
// time; it carries no wall-clock fields.
type SuiteReport struct {
	Suite       string             `json:"suite"`
	Container   string             `json:"container"`
	Total       int                `json:"total"`
	Counts      VerdictCounts      `json:"counts"`
	Percentages VerdictPercentages `json:"percentages"`
	Rows        []DetailRow        `json:"rows"`
	RootCauses  []RootCause        `json:"root_causes"`
	NextSteps   []NextStep         `json:"next_steps"`
}

// SuiteReportRow is the persisted form of one suite's outcome within a run:
// either an analyzed report or an explicit not-analyzed entry with its
// failure note. Failed suites are never silently dropped.
type SuiteReportRow struct {
	ID          uuid.UUID    `db:"id"           json:"id"`
	RunID       uuid.UUID    `db:"run_id"       json:"run_id"`
	Suite       string       `db:"suite"        json:"suite"`
	Container   string       `db:"container"    json:"container"`
	Status      string       `db:"status"       json:"status"`
	FailureNote *string      `db:"failure_note" json:"failure_note,omitempty"`
	Report      *SuiteReport `db:"report"       json:"report,omitempty"`
	Markdown    string       `db:"markdown"     json:"-"`
	CreatedAt   time.Time    `db:"created_at"   json:"created_at"`
}
