// Package aggregate consolidates per-suite classifications into a
// deduplicated set of confirmed container defects. Evidence already
// explained by an infrastructure signature is excluded; the remainder is
// grouped by (container, normalized fingerprint) so the same defect seen
// under many suites collapses to one entry. Aggregation is a pure function
// of its inputs: re-running over the same suites yields identical entries.
package aggregate

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dverstak/triage/pkg/models"
)

// Defect categories derived from evidence patterns.
const (
	CategoryMissingLibrary = "missing shared library"
	CategoryMissingModule  = "missing python module"
	CategoryMissingBinary  = "missing binary"
	CategoryRuntimeError   = "runtime error"
)

// Severity thresholds over affected/total, in per-mille to stay in integer
// arithmetic.
const (
	criticalThreshold = 900
	highThreshold     = 400
	moderateThreshold = 150
)

// Normalization regexes compiled once at package init.
var (
	reSharedLib  = regexp.MustCompile(`error while loading shared libraries: ([^\s:]+)`)
	rePyModule   = regexp.MustCompile(`No module named '([^']+)'`)
	reNotFound   = regexp.MustCompile(`([\w./+-]+): command not found`)
	reHexAddr    = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	rePathLike   = regexp.MustCompile(`(/[\w.+-]+){2,}`)
	reNumber     = regexp.MustCompile(`\b\d+\b`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SuiteVerdicts is one suite's classified records, the aggregator's input unit.
type SuiteVerdicts struct {
	Suite      string
	Container  string
	Classified []models.ClassifiedRecord
}

// Result is the consolidated defect set plus a partial-input flag.
type Result struct {
	Entries []models.BugEntry `json:"entries"`
	// Partial is set when fewer suites were available than requested,
	// e.g. because some failed upstream. Entries cover the available subset.
	Partial bool `json:"partial"`
}

// Aggregate builds the deduplicated BugEntry set from all available suite
// verdict sets. requested is the number of suites the run asked for; when
// it exceeds the available set, the result is flagged partial.
func Aggregate(suites []SuiteVerdicts, requested int) Result {
	type group struct {
		category string
		evidence string
		affected int
		suites   map[string]struct{}
	}

	groups := make(map[string]map[string]*group) // container -> fingerprint -> group
	containerTotals := make(map[string]int)
	containerPassed := make(map[string]int)

	for _, sv := range suites {
		for _, cr := range sv.Classified {
			containerTotals[sv.Container]++
			if cr.Record.Passed {
				containerPassed[sv.Container]++
			}

			if !isDefectEvidence(cr.Classification) {
				continue
			}
			evidence := defectEvidence(cr.Record)
			if evidence == "" {
				continue
			}

			category, fp := Fingerprint(evidence)
			byFP := groups[sv.Container]
			if byFP == nil {
				byFP = make(map[string]*group)
				groups[sv.Container] = byFP
			}
			g, ok := byFP[fp]
			if !ok {
				g = &group{
					category: category,
					evidence: truncateString(evidence, 500),
					suites:   make(map[string]struct{}),
				}
				byFP[fp] = g
			}
			g.affected++
			g.suites[sv.Suite] = struct{}{}
		}
	}

	var entries []models.BugEntry
	for container, byFP := range groups {
		total := containerTotals[container]
		for fp, g := range byFP {
			suiteNames := make([]string, 0, len(g.suites))
			for s := range g.suites {
				suiteNames = append(suiteNames, s)
			}
			sort.Strings(suiteNames)

			entries = append(entries, models.BugEntry{
				Container:     container,
				Category:      g.category,
				Severity:      severity(g.affected, total),
				Fingerprint:   fp,
				AffectedTests: g.affected,
				TotalTests:    total,
				PassRate:      passRate(containerPassed[container], total),
				Evidence:      g.evidence,
				Suites:        suiteNames,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Severity.Rank() != entries[j].Severity.Rank() {
			return entries[i].Severity.Rank() > entries[j].Severity.Rank()
		}
		if entries[i].AffectedTests != entries[j].AffectedTests {
			return entries[i].AffectedTests > entries[j].AffectedTests
		}
		if entries[i].Container != entries[j].Container {
			return entries[i].Container < entries[j].Container
		}
		return entries[i].Fingerprint < entries[j].Fingerprint
	})

	return Result{Entries: entries, Partial: requested > len(suites)}
}

// isDefectEvidence selects classifications that point at a genuine container
// defect: real tool failures, plus recorded passes undermined by an
// unvalidated non-zero exit. Infra-signature matches are harness problems,
// not container bugs.
func isDefectEvidence(c models.Classification) bool {
	if c.Infra {
		return false
	}
	if c.Verdict == models.TrueNegative {
		return true
	}
	return c.Verdict == models.FalsePositive && c.Signature != ""
}

// defectEvidence picks the evidence string for grouping: stderr when
// present, else stdout, else the runner's message.
func defectEvidence(rec models.TestResultRecord) string {
	if strings.TrimSpace(rec.Stderr) != "" {
		return strings.TrimSpace(rec.Stderr)
	}
	if strings.TrimSpace(rec.Stdout) != "" {
		return strings.TrimSpace(rec.Stdout)
	}
	return strings.TrimSpace(rec.Message)
}

// Fingerprint derives (category, stable fingerprint) from an evidence
// string. Known defect patterns keep their extracted subject (library,
// module, binary name) so distinct defects stay distinct; everything else
// falls back to a normalized-message hash.
func Fingerprint(evidence string) (category, fingerprint string) {
	if m := reSharedLib.FindStringSubmatch(evidence); m != nil {
		return CategoryMissingLibrary, hash("lib:" + m[1])
	}
	if m := rePyModule.FindStringSubmatch(evidence); m != nil {
		return CategoryMissingModule, hash("pymod:" + m[1])
	}
	if m := reNotFound.FindStringSubmatch(evidence); m != nil {
		return CategoryMissingBinary, hash("bin:" + m[1])
	}
	return CategoryRuntimeError, hash("msg:" + Normalize(evidence))
}

// Normalize strips volatile tokens (addresses, paths, numbers) so the same
// defect fingerprints identically across runs and suites.
func Normalize(msg string) string {
	msg = reHexAddr.ReplaceAllString(msg, "0xADDR")
	msg = rePathLike.ReplaceAllString(msg, "/PATH")
	msg = reNumber.ReplaceAllString(msg, "N")
	msg = reWhitespace.ReplaceAllString(msg, " ")
	msg = strings.ToLower(strings.TrimSpace(msg))
	return truncateString(msg, 500)
}

func severity(affected, total int) models.Severity {
	if total == 0 {
		return models.SeverityLow
	}
	permille := affected * 1000 / total
	switch {
	case permille >= criticalThreshold:
		return models.SeverityCritical
	case permille >= highThreshold:
		return models.SeverityHigh
	case permille >= moderateThreshold:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// passRate renders passed/total with one decimal place, half-up.
func passRate(passed, total int) string {
	if total == 0 {
		return "0.0%"
	}
	tenths := (passed*1000 + total/2) / total
	return fmt.Sprintf("%d.%d%%", tenths/10, tenths%10)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum[:8])
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
