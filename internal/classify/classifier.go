// Package classify turns one test result record plus its expectation spec
// into exactly one verdict. Classification is a pure function: no I/O, no
// retries, two terminal steps (signature lookup, then fallback agreement).
package classify

import (
	"strings"

	"github.com/dverstak/triage/internal/signature"
	"github.com/dverstak/triage/pkg/models"
)

// Fallback reason strings, used when no signature matches.
const (
	ReasonVerifiedPass      = "verified-pass"
	ReasonExitCodeMismatch  = "exit-code-mismatch"
	ReasonOutputMissing     = "expected-output-missing"
	ReasonOutputFileMissing = "output-file-not-found"
	ReasonGenuineToolError  = "genuine-tool-error"
	ReasonUnclassified      = "unclassified — requires manual review"
	ReasonEnvironmentBroken = "container-environment-failure"
	ReasonProbeTimeout      = "probe timed out — unclassified"
)

// outputFileMarker is the message prefix the runner writes when an
// output_exists validation fails. A recorded pass carrying it contradicts
// the spec's validate mode.
const outputFileMarker = "Output file not found"

// Classifier applies a signature registry to records. The registry is
// read-only for the classifier's lifetime and may be shared across workers.
type Classifier struct {
	registry *signature.Registry
}

// New creates a Classifier over the given registry.
func New(reg *signature.Registry) *Classifier {
	return &Classifier{registry: reg}
}

// Classify produces the verdict for one record. A signature match overrides
// the recorded verdict's trustworthiness; otherwise the recorded verdict is
// checked for direct agreement with the evidence.
func (c *Classifier) Classify(rec models.TestResultRecord, spec models.ExpectationSpec) models.Classification {
	if sig := c.registry.Match(rec, spec); sig != nil {
		verdict := models.FalseNegative
		if rec.Passed {
			verdict = models.FalsePositive
		}
		return models.Classification{Verdict: verdict, Reason: sig.Name, Signature: sig.Name, Infra: sig.Infra}
	}

	if rec.Passed {
		return c.classifyRecordedPass(rec, spec)
	}
	return c.classifyRecordedFail(rec)
}

func (c *Classifier) classifyRecordedPass(rec models.TestResultRecord, spec models.ExpectationSpec) models.Classification {
	if missing := missingExpectedOutput(rec, spec); missing {
		return models.Classification{Verdict: models.FalsePositive, Reason: ReasonOutputMissing}
	}
	if spec.ExpectedExitCode != nil && rec.HasExitCode() && *rec.ExitCode != *spec.ExpectedExitCode {
		return models.Classification{Verdict: models.FalsePositive, Reason: ReasonExitCodeMismatch}
	}
	if spec.Validate == models.ValidateOutputExists && strings.Contains(rec.Message, outputFileMarker) {
		return models.Classification{Verdict: models.FalsePositive, Reason: ReasonOutputFileMissing}
	}
	// Exit 0, or no exit-code expectation and no contradicting evidence.
	return models.Classification{Verdict: models.TruePositive, Reason: ReasonVerifiedPass}
}

func (c *Classifier) classifyRecordedFail(rec models.TestResultRecord) models.Classification {
	if hasToolSideEvidence(rec) {
		return models.Classification{Verdict: models.TrueNegative, Reason: ReasonGenuineToolError}
	}
	return models.Classification{Verdict: models.FalseNegative, Reason: ReasonUnclassified}
}

// missingExpectedOutput reports whether any expected substring is absent
// from the combined stdout+stderr. A spec without expected substrings
// checks nothing.
func missingExpectedOutput(rec models.TestResultRecord, spec models.ExpectationSpec) bool {
	if len(spec.ExpectedOutputContains) == 0 {
		return false
	}
	combined := rec.CombinedOutput()
	for _, want := range spec.ExpectedOutputContains {
		if want != "" && !strings.Contains(combined, want) {
			return true
		}
	}
	return false
}

// hasToolSideEvidence reports whether a recorded failure shows a real
// tool-originated cause: a non-sentinel non-zero exit, or diagnostic output.
func hasToolSideEvidence(rec models.TestResultRecord) bool {
	if rec.ExitCodeIs(signature.ExitNeverRan) {
		return false
	}
	if rec.HasExitCode() && *rec.ExitCode != 0 && rec.CombinedOutput() != "" {
		return true
	}
	return false
}
