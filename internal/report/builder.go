// Package report folds a suite's classifications into a SuiteReport and
// renders the documented markdown layout. Building is a pure function of
// the classification list and suite metadata: two builds over the same
// input are byte-identical.
package report

import (
	"fmt"
	"sort"

	"github.com/dverstak/triage/internal/signature"
	"github.com/dverstak/triage/pkg/models"
)

// Build derives a SuiteReport from classified records. Detail rows keep the
// input record order; root causes are ordered by frequency descending, then
// alphabetically; next steps by affected count descending.
func Build(suite, container string, classified []models.ClassifiedRecord, reg *signature.Registry) models.SuiteReport {
	rep := models.SuiteReport{
		Suite:     suite,
		Container: container,
		Total:     len(classified),
		Rows:      make([]models.DetailRow, 0, len(classified)),
	}

	reasonCounts := make(map[string]int)
	signatureCounts := make(map[string]int)

	for _, cr := range classified {
		switch cr.Classification.Verdict {
		case models.TruePositive:
			rep.Counts.TruePositive++
		case models.TrueNegative:
			rep.Counts.TrueNegative++
		case models.FalsePositive:
			rep.Counts.FalsePositive++
		case models.FalseNegative:
			rep.Counts.FalseNegative++
		}

		recorded := "FAIL"
		if cr.Record.Passed {
			recorded = "PASS"
		}
		rep.Rows = append(rep.Rows, models.DetailRow{
			Test:     cr.Record.Test,
			Recorded: recorded,
			Verdict:  cr.Classification.Verdict,
			Reason:   cr.Classification.Reason,
		})

		reasonCounts[cr.Classification.Reason]++
		if cr.Classification.Signature != "" {
			signatureCounts[cr.Classification.Signature]++
		}
	}

	rep.Percentages = models.VerdictPercentages{
		TruePositive:  Percent(rep.Counts.TruePositive, rep.Total),
		TrueNegative:  Percent(rep.Counts.TrueNegative, rep.Total),
		FalsePositive: Percent(rep.Counts.FalsePositive, rep.Total),
		FalseNegative: Percent(rep.Counts.FalseNegative, rep.Total),
	}

	rep.RootCauses = rootCauses(reasonCounts)
	rep.NextSteps = nextSteps(signatureCounts, reg)
	return rep
}

func rootCauses(counts map[string]int) []models.RootCause {
	causes := make([]models.RootCause, 0, len(counts))
	for reason, n := range counts {
		causes = append(causes, models.RootCause{Reason: reason, Count: n})
	}
	sort.Slice(causes, func(i, j int) bool {
		if causes[i].Count != causes[j].Count {
			return causes[i].Count > causes[j].Count
		}
		return causes[i].Reason < causes[j].Reason
	})
	return causes
}

// nextSteps maps each signature that fired in this suite to its registered
// remediation, ordered by affected test count descending. Registry order
// breaks ties, so output is stable.
func nextSteps(fired map[string]int, reg *signature.Registry) []models.NextStep {
	if reg == nil {
		return nil
	}
	var steps []models.NextStep
	for _, name := range reg.Names() {
		if n, ok := fired[name]; ok {
			steps = append(steps, models.NextStep{Action: remediationFor(reg, name), Affected: n})
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Affected > steps[j].Affected
	})
	return steps
}

func remediationFor(reg *signature.Registry, name string) string {
	for _, sig := range reg.All() {
		if sig.Name == name {
			return sig.Remediation
		}
	}
	return name
}

// Percent renders n/total as a percentage with one decimal place, ties
// rounded half-up. Integer arithmetic only, so rendering is deterministic.
func Percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	// Per-mille, rounded half-up.
	tenths := (n*1000 + total/2) / total
	return fmt.Sprintf("%d.%d%%", tenths/10, tenths%10)
}
