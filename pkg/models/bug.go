package models

// Severity grades a confirmed container defect by how much of the
// container's test population it affects.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

// Rank maps a severity to a numeric order for sorting, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityModerate:
		return 1
	default:
		return 0
	}
}

// BugEntry is a deduplicated, cross-suite record of a genuine defect in a
// container's tool installation. Entries are keyed by
// (container, fingerprint): identical evidence seen under multiple suites
// collapses into one entry with a combined affected-test count.
type BugEntry struct {
	Container     string   `json:"container"`
	Category      string   `json:"category"`
	Severity      Severity `json:"severity"`
	Fingerprint   string   `json:"fingerprint"`
	AffectedTests int      `json:"affected_tests"`
	TotalTests    int      `json:"total_tests"`
	PassRate      string   `json:"pass_rate"`
	Evidence      string   `json:"evidence"`
	Suites        []string `json:"suites"`
}
