package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RunStatusKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s", runID)
}

func BugReportKey(runID uuid.UUID) string {
	return fmt.Sprintf("bugs:md:%s", runID)
}

func SuiteReportKey(runID uuid.UUID, suite string) string {
	return fmt.Sprintf("report:md:%s:%s", runID, suite)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
