// Package models contains shared data models used across the Triage codebase.
package models

import (
	"errors"
	"fmt"
)

// TestResultRecord is one observed outcome of running a single test command
// inside a container, as emitted by the test runner's JSONL stream.
// Records are immutable once read.
type TestResultRecord struct {
	Suite     string  `json:"suite"`
	Container string  `json:"container"`
	Test      string  `json:"test"`
	Passed    bool    `json:"passed"`
	StartTime string  `json:"start_time"`
	Duration  float64 `json:"duration"`
	Message   string  `json:"message"`
	ExitCode  *int    `json:"exit_code"`
	Stdout    string  `json:"stdout"`
	Stderr    string  `json:"stderr"`
}

// ErrRecordInvalid is returned by Validate for records missing mandatory fields.
var ErrRecordInvalid = errors.New("invalid test result record")

// Validate checks the mandatory fields. Records failing validation are
// skipped at ingest; the classifier never sees them.
func (r *TestResultRecord) Validate() error {
	if r.Suite == "" {
		return fmt.Errorf("%w: suite is required", ErrRecordInvalid)
	}
	if r.Test == "" {
		return fmt.Errorf("%w: test is required", ErrRecordInvalid)
	}
	return nil
}

// HasExitCode reports whether the runner captured an exit code for this record.
func (r *TestResultRecord) HasExitCode() bool {
	return r.ExitCode != nil
}

// ExitCodeIs reports whether the record carries exit code c.
// An unknown exit code matches nothing.
func (r *TestResultRecord) ExitCodeIs(c int) bool {
	return r.ExitCode != nil && *r.ExitCode == c
}

// CombinedOutput returns stdout followed by stderr, the same view the runner
// uses for expected-output checks.
func (r *TestResultRecord) CombinedOutput() string {
	return r.Stdout + r.Stderr
}
