// Package signature holds the ordered failure-signature registry: named
// predicates over a record's exit code and captured output that identify
// known infrastructure failure modes. Matching is first-wins over the
// registry order, so the order itself is part of the contract.
package signature

import (
	"fmt"

	"github.com/dverstak/triage/pkg/models"
)

// Predicate tests one record against one signature. Predicates must be pure:
// no I/O, no state.
type Predicate func(rec models.TestResultRecord, spec models.ExpectationSpec) bool

// Signature is a named, matchable pattern of evidence indicating a specific
// known failure mode.
type Signature struct {
	// Name is the machine-reason string carried into verdicts.
	Name string
	// Infra marks signatures that indicate harness or environment failure
	// rather than a container defect. Infra matches are excluded from the
	// cross-suite defect aggregation.
	Infra bool
	// Remediation is the next-step recommendation emitted when this
	// signature fires anywhere in a suite.
	Remediation string
	Match       Predicate
}

// Registry is an ordered, appendable table of signatures. It is read-only
// during a run and safe to share across workers without locking.
type Registry struct {
	entries []Signature
}

// NewRegistry builds a registry from the given signatures, in order.
func NewRegistry(sigs ...Signature) *Registry {
	return &Registry{entries: sigs}
}

// Match returns the first signature (in registry order) whose predicate is
// satisfied, or nil if none match.
func (r *Registry) Match(rec models.TestResultRecord, spec models.ExpectationSpec) *Signature {
	for i := range r.entries {
		if r.entries[i].Match(rec, spec) {
			return &r.entries[i]
		}
	}
	return nil
}

// Append adds a signature at the end of the registry, after all existing
// entries. Existing predicates are never modified.
func (r *Registry) Append(sig Signature) {
	r.entries = append(r.entries, sig)
}

// InsertBefore inserts a signature immediately before the named entry, for
// new signatures that must out-rank an existing one. Returns an error when
// the anchor does not exist.
func (r *Registry) InsertBefore(anchor string, sig Signature) error {
	for i := range r.entries {
		if r.entries[i].Name == anchor {
			r.entries = append(r.entries[:i], append([]Signature{sig}, r.entries[i:]...)...)
			return nil
		}
	}
	return fmt.Errorf("signature registry: no entry named %q", anchor)
}

// All returns a copy of the registry entries in order.
func (r *Registry) All() []Signature {
	out := make([]Signature, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the registry order, for inspection and tests.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, s := range r.entries {
		names[i] = s.Name
	}
	return names
}
