package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"unicode/utf8"
)

// maxCaptured bounds how much probe output is retained per stream.
const maxCaptured = 4096

// ExecProber runs probe commands through a container runtime CLI.
type ExecProber struct {
	runtime string
}

// NewApptainerProber probes via `apptainer exec <image> sh -c <command>`.
func NewApptainerProber() *ExecProber {
	return &ExecProber{runtime: "apptainer"}
}

// NewDockerProber probes via `docker run --rm <image> sh -c <command>`.
func NewDockerProber() *ExecProber {
	return &ExecProber{runtime: "docker"}
}

func (p *ExecProber) Name() string { return p.runtime }

func (p *ExecProber) Probe(ctx context.Context, container, command string) (Result, error) {
	var argv []string
	switch p.runtime {
	case "apptainer":
		argv = []string{"apptainer", "exec", container, "sh", "-c", command}
	case "docker":
		argv = []string{"docker", "run", "--rm", container, "sh", "-c", command}
	default:
		return Result{}, fmt.Errorf("%w: unknown runtime %q", ErrProbeUnavailable, p.runtime)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrProbeTimeout, command)
	}

	res := Result{
		Stdout: truncate(stdout.String(), maxCaptured),
		Stderr: truncate(stderr.String(), maxCaptured),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// Runtime binary missing or not executable.
		return Result{}, fmt.Errorf("%w: %v", ErrProbeUnavailable, err)
	}

	return res, nil
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
