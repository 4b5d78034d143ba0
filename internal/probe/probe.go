// Package probe is the optional container-probe collaborator: a facility
// for running a short command inside a container to disambiguate
// low-confidence verdicts. The triage core functions correctly without a
// prober; absence degrades to evidence-only classification.
package probe

import (
	"context"
	"errors"
)

// Sentinel errors for probe failures.
var (
	ErrProbeUnavailable = errors.New("probe runtime unavailable")
	ErrProbeTimeout     = errors.New("probe timed out")
)

// Result is the observed outcome of one probe command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Prober is the interface all probe runtimes implement. Never call a
// specific runtime directly; always inject this interface.
type Prober interface {
	// Probe runs command inside the named container and returns the
	// captured outcome. Implementations must honor ctx cancellation.
	Probe(ctx context.Context, container, command string) (Result, error)
	// Name returns the runtime identifier (e.g., "apptainer", "docker").
	Name() string
}

// HealthCommand is the no-op command used to check that a container can
// execute anything at all, mirroring the runner's health check.
const HealthCommand = "true"
