package models

// ValidateMode selects an extra post-run validation for a test.
type ValidateMode string

const (
	ValidateNone         ValidateMode = "none"
	ValidateOutputExists ValidateMode = "output_exists"
)

// ExpectationSpec is the expected behavior for one test, sourced from the
// suite's YAML test document. A nil/empty field means "not checked", never
// "checked and empty".
type ExpectationSpec struct {
	ExpectedExitCode       *int         `yaml:"expected_exit_code"`
	ExpectedOutputContains []string     `yaml:"expected_output_contains"`
	Validate               ValidateMode `yaml:"validate"`
}

// ExpectationSet holds the expectation specs for one suite, keyed by test name.
type ExpectationSet map[string]ExpectationSpec

// Lookup returns the spec for a test. Absent tests get a zero spec, which
// checks nothing.
func (s ExpectationSet) Lookup(test string) ExpectationSpec {
	if s == nil {
		return ExpectationSpec{}
	}
	return s[test]
}
