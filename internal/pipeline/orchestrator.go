// Package pipeline runs classification and report building over many
// independent suite inputs under a fixed concurrency cap. Each worker
// wholly owns one suite; a failure in one suite never aborts its siblings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dverstak/triage/internal/classify"
	"github.com/dverstak/triage/internal/probe"
	"github.com/dverstak/triage/internal/report"
	"github.com/dverstak/triage/internal/signature"
	"github.com/dverstak/triage/pkg/models"
)

// DefaultMaxWorkers is the documented default concurrency cap.
const DefaultMaxWorkers = 10

// SuiteOutcome is one suite's terminal state: either a report plus its
// classified records, or a failure note. Exactly one of Report/Err is set.
type SuiteOutcome struct {
	Suite      string
	Container  string
	Report     *models.SuiteReport
	Classified []models.ClassifiedRecord
	Skipped    int
	Err        error
}

// Failed reports whether this suite ended with a failure note instead of a
// report.
func (o SuiteOutcome) Failed() bool { return o.Err != nil }

// Progress is a point-in-time view of a running orchestration.
type Progress struct {
	Total     int
	Completed int
	Failed    int
}

// Orchestrator schedules suite processing. The registry and classifier are
// read-only during a run and shared by reference across all workers.
type Orchestrator struct {
	registry     *signature.Registry
	classifier   *classify.Classifier
	prober       probe.Prober
	maxWorkers   int
	suiteTimeout time.Duration
	probeTimeout time.Duration
	onComplete   func(SuiteOutcome)

	collector *collector
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxWorkers sets the concurrency cap. Values below 1 are ignored.
func WithMaxWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxWorkers = n
		}
	}
}

// WithProber enables probe-based disambiguation of unclassified failures.
func WithProber(p probe.Prober, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.prober = p
		o.probeTimeout = timeout
	}
}

// WithSuiteTimeout bounds one suite's processing end to end.
func WithSuiteTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.suiteTimeout = d }
}

// WithOnComplete registers a callback invoked as each suite finishes, from
// the finishing worker's goroutine. Callbacks must be safe for concurrent
// use; they are how partial results become inspectable mid-run.
func WithOnComplete(fn func(SuiteOutcome)) Option {
	return func(o *Orchestrator) { o.onComplete = fn }
}

// New creates an Orchestrator over the given registry.
func New(reg *signature.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:     reg,
		classifier:   classify.New(reg),
		maxWorkers:   DefaultMaxWorkers,
		probeTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every input exactly once and blocks until all have either
// produced a report or recorded a failure note. At most maxWorkers suites
// are in flight at any instant; as each completes, the next queued input is
// admitted. Cancelling ctx stops admitting new suites and lets in-flight
// ones finish; already-finished outcomes stay valid. Outcomes are returned
// in input order.
func (o *Orchestrator) Run(ctx context.Context, inputs []models.SuiteInput) []SuiteOutcome {
	outcomes := make([]SuiteOutcome, len(inputs))
	o.collector = newCollector(len(inputs))

	var g errgroup.Group
	g.SetLimit(o.maxWorkers)

	for i := range inputs {
		if ctx.Err() != nil {
			// Cancelled: remaining inputs get explicit failure notes
			// rather than being silently dropped.
			for j := i; j < len(inputs); j++ {
				outcomes[j] = SuiteOutcome{
					Suite:     inputs[j].Suite,
					Container: inputs[j].Container,
					Err:       fmt.Errorf("not analyzed: %w", ctx.Err()),
				}
				o.finish(outcomes[j])
			}
			break
		}

		g.Go(func() error {
			outcomes[i] = o.processSuite(ctx, inputs[i])
			o.finish(outcomes[i])
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// Snapshot returns the current progress. Safe to call from any goroutine
// while Run is in flight.
func (o *Orchestrator) Snapshot() Progress {
	if o.collector == nil {
		return Progress{}
	}
	return o.collector.snapshot()
}

func (o *Orchestrator) finish(out SuiteOutcome) {
	o.collector.record(out)
	if o.onComplete != nil {
		o.onComplete(out)
	}
}

// processSuite classifies one suite's records and builds its report. Panics
// and errors are converted into a failure note; they never propagate.
func (o *Orchestrator) processSuite(ctx context.Context, input models.SuiteInput) (out SuiteOutcome) {
	out = SuiteOutcome{Suite: input.Suite, Container: input.Container}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing suite", "suite", input.Suite, "error", r)
			out.Report = nil
			out.Classified = nil
			out.Err = fmt.Errorf("suite processing panicked: %v", r)
		}
	}()

	if o.suiteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.suiteTimeout)
		defer cancel()
	}

	if len(input.Records) == 0 {
		out.Err = fmt.Errorf("suite %q has no records", input.Suite)
		return out
	}

	classified := make([]models.ClassifiedRecord, 0, len(input.Records))
	for _, rec := range input.Records {
		if err := rec.Validate(); err != nil {
			// Malformed records are unclassifiable; skip, never abort.
			slog.Warn("skipping unclassifiable record", "suite", input.Suite, "test", rec.Test, "error", err)
			out.Skipped++
			continue
		}
		spec := input.Expectations.Lookup(rec.Test)
		classified = append(classified, models.ClassifiedRecord{
			Record:         rec,
			Classification: o.classifier.Classify(rec, spec),
		})
	}

	if o.prober != nil {
		o.disambiguate(ctx, input.Container, classified)
	}

	rep := report.Build(input.Suite, input.Container, classified, o.registry)
	out.Report = &rep
	out.Classified = classified
	return out
}

// disambiguate probes container health once per suite when any recorded
// failure came back unclassified. A broken environment reclassifies those
// failures as infrastructure-caused; a healthy one leaves them for manual
// review. Probe failures are never fatal.
func (o *Orchestrator) disambiguate(ctx context.Context, container string, classified []models.ClassifiedRecord) {
	var pending []int
	for i := range classified {
		if classified[i].Classification.Reason == classify.ReasonUnclassified {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.probeTimeout)
	defer cancel()

	res, err := o.prober.Probe(probeCtx, container, probe.HealthCommand)
	switch {
	case err != nil && (probeCtx.Err() != nil || errors.Is(err, probe.ErrProbeTimeout)):
		for _, i := range pending {
			classified[i].Classification.Reason = classify.ReasonProbeTimeout
		}
	case err != nil:
		// Prober unreachable: degrade to evidence-only classification.
		slog.Warn("probe unavailable", "container", container, "error", err)
	case res.ExitCode != 0:
		for _, i := range pending {
			classified[i].Classification.Reason = classify.ReasonEnvironmentBroken
			classified[i].Classification.Infra = true
		}
	}
}

// collector is the only state shared between workers. Mutex-guarded; each
// worker hands over its outcome exactly once.
type collector struct {
	mu        sync.Mutex
	total     int
	completed int
	failed    int
}

func newCollector(total int) *collector {
	return &collector{total: total}
}

func (c *collector) record(out SuiteOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
	if out.Failed() {
		c.failed++
	}
}

func (c *collector) snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Progress{Total: c.total, Completed: c.completed, Failed: c.failed}
}
