package signature

import (
	"strings"

	"github.com/dverstak/triage/pkg/models"
)

// Sentinel exit codes observed from the runner.
const (
	// ExitNeverRan is apptainer's exit code when the command environment
	// itself failed before the tool ran.
	ExitNeverRan = 255
	// ExitShellSyntax is bash's exit code for a syntax error in the
	// generated test script.
	ExitShellSyntax = 2
)

// Built-in signature names.
const (
	NoExecutableShell = "no-executable-shell"
	HostQuotingBreak  = "host-side-quoting-break"
	UnvalidatedExit   = "unvalidated-exit-code"
)

// Default returns the canonical registry, in documented priority order.
// New signatures are appended or inserted before a named anchor; existing
// predicates stay untouched.
func Default() *Registry {
	return NewRegistry(
		Signature{
			Name:        NoExecutableShell,
			Infra:       true,
			Remediation: "Invoke the tool binary directly instead of wrapping it in a shell; the container image ships no usable shell.",
			Match: func(rec models.TestResultRecord, _ models.ExpectationSpec) bool {
				return rec.ExitCodeIs(ExitNeverRan) && containsAny(rec.Stderr,
					"executable file not found",
					"no such file or directory: bash",
					"bash: not found",
				)
			},
		},
		Signature{
			Name:        HostQuotingBreak,
			Infra:       true,
			Remediation: "Write test commands to a script file before exec; host-side quoting is breaking on shell metacharacters.",
			Match: func(rec models.TestResultRecord, _ models.ExpectationSpec) bool {
				return rec.ExitCodeIs(ExitShellSyntax) &&
					strings.Contains(rec.Stderr, "syntax error near unexpected token")
			},
		},
		Signature{
			Name:        UnvalidatedExit,
			Infra:       false,
			Remediation: "Add expected_exit_code to the suite's test specs; passes are being recorded without validating the exit code.",
			Match: func(rec models.TestResultRecord, spec models.ExpectationSpec) bool {
				return rec.Passed &&
					spec.ExpectedExitCode == nil &&
					rec.HasExitCode() && *rec.ExitCode != 0
			},
		},
	)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
