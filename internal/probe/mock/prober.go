package mock

import (
	"context"

	"github.com/dverstak/triage/internal/probe"
)

// MockProber satisfies probe.Prober for testing.
type MockProber struct {
	Name_     string
	ProbeFunc func(ctx context.Context, container, command string) (probe.Result, error)
	Calls     int
}

func (m *MockProber) Name() string { return m.Name_ }

func (m *MockProber) Probe(ctx context.Context, container, command string) (probe.Result, error) {
	m.Calls++
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, container, command)
	}
	return probe.Result{}, nil
}

// NewHealthyProber returns a MockProber whose probes always succeed.
func NewHealthyProber() *MockProber {
	return &MockProber{
		Name_: "mock",
		ProbeFunc: func(_ context.Context, _, _ string) (probe.Result, error) {
			return probe.Result{ExitCode: 0}, nil
		},
	}
}

// NewBrokenContainerProber returns a MockProber simulating a container that
// cannot execute anything.
func NewBrokenContainerProber() *MockProber {
	return &MockProber{
		Name_: "mock-broken",
		ProbeFunc: func(_ context.Context, _, _ string) (probe.Result, error) {
			return probe.Result{ExitCode: 255, Stderr: "FATAL: container creation failed"}, nil
		},
	}
}

// NewTimeoutProber returns a MockProber that blocks until the context is
// cancelled.
func NewTimeoutProber() *MockProber {
	return &MockProber{
		Name_: "mock-timeout",
		ProbeFunc: func(ctx context.Context, _, _ string) (probe.Result, error) {
			<-ctx.Done()
			return probe.Result{}, probe.ErrProbeTimeout
		},
	}
}

// NewFailingProber returns a MockProber that always returns err.
func NewFailingProber(err error) *MockProber {
	return &MockProber{
		Name_: "mock-failing",
		ProbeFunc: func(_ context.Context, _, _ string) (probe.Result, error) {
			return probe.Result{}, err
		},
	}
}
