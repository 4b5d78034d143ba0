package report

import (
	"fmt"
	"strings"

	"github.com/dverstak/triage/pkg/models"
)

// Markdown renders a SuiteReport into the documented markdown layout:
// header, summary table, detail table, root causes, next steps. The output
// is a pure function of the report.
func Markdown(rep models.SuiteReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Test Result Audit: %s\n\n", rep.Suite)
	fmt.Fprintf(&b, "Container: `%s`  \n", rep.Container)
	fmt.Fprintf(&b, "Tests analyzed: %d\n\n", rep.Total)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Classification | Count | Share |\n")
	b.WriteString("|---|---|---|\n")
	fmt.Fprintf(&b, "| True Positive | %d | %s |\n", rep.Counts.TruePositive, rep.Percentages.TruePositive)
	fmt.Fprintf(&b, "| True Negative | %d | %s |\n", rep.Counts.TrueNegative, rep.Percentages.TrueNegative)
	fmt.Fprintf(&b, "| False Positive | %d | %s |\n", rep.Counts.FalsePositive, rep.Percentages.FalsePositive)
	fmt.Fprintf(&b, "| False Negative | %d | %s |\n", rep.Counts.FalseNegative, rep.Percentages.FalseNegative)
	b.WriteString("\n")

	b.WriteString("## Detail\n\n")
	b.WriteString("| Test | Recorded | Classification | Reason |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, row := range rep.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			escapeCell(row.Test), row.Recorded, row.Verdict.Label(), escapeCell(row.Reason))
	}
	b.WriteString("\n")

	if len(rep.RootCauses) > 0 {
		b.WriteString("## Root Causes\n\n")
		for _, rc := range rep.RootCauses {
			fmt.Fprintf(&b, "- %s (%d)\n", escapeCell(rc.Reason), rc.Count)
		}
		b.WriteString("\n")
	}

	if len(rep.NextSteps) > 0 {
		b.WriteString("## Next Steps\n\n")
		for i, step := range rep.NextSteps {
			fmt.Fprintf(&b, "%d. %s (%d tests affected)\n", i+1, step.Action, step.Affected)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// escapeCell keeps pipe characters in test names and reasons from breaking
// markdown tables.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
