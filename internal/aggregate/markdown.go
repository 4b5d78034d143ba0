package aggregate

import (
	"fmt"
	"strings"
)

// Markdown renders the consolidated defects report: a summary table sorted
// by severity then affected count descending, followed by one section per
// entry with its evidence excerpt.
func Markdown(res Result) string {
	var b strings.Builder

	b.WriteString("# Confirmed Container Defects\n\n")
	if res.Partial {
		b.WriteString("> Partial run: one or more suites were not analyzed; entries cover the available subset.\n\n")
	}

	if len(res.Entries) == 0 {
		b.WriteString("No confirmed defects.\n")
		return b.String()
	}

	b.WriteString("| Container | Category | Severity | Affected | Pass Rate |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, e := range res.Entries {
		fmt.Fprintf(&b, "| %s | %s | %s | %d/%d | %s |\n",
			e.Container, e.Category, e.Severity, e.AffectedTests, e.TotalTests, e.PassRate)
	}
	b.WriteString("\n")

	for _, e := range res.Entries {
		fmt.Fprintf(&b, "## %s: %s (%s)\n\n", e.Container, e.Category, e.Severity)
		fmt.Fprintf(&b, "Affected tests: %d of %d  \n", e.AffectedTests, e.TotalTests)
		fmt.Fprintf(&b, "Seen in suites: %s\n\n", strings.Join(e.Suites, ", "))
		b.WriteString("```\n")
		b.WriteString(e.Evidence)
		b.WriteString("\n```\n\n")
	}

	return b.String()
}
