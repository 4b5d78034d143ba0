// Package triage wires the classification pipeline to persistence: it
// accepts run requests, dispatches the orchestrator in the background,
// persists every suite's outcome the moment it completes, and runs the
// cross-suite aggregation once all workers have finished.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dverstak/triage/internal/aggregate"
	"github.com/dverstak/triage/internal/cache"
	"github.com/dverstak/triage/internal/config"
	"github.com/dverstak/triage/internal/ingest"
	"github.com/dverstak/triage/internal/pipeline"
	"github.com/dverstak/triage/internal/probe"
	"github.com/dverstak/triage/internal/report"
	"github.com/dverstak/triage/internal/signature"
	"github.com/dverstak/triage/internal/store"
	"github.com/dverstak/triage/pkg/models"
)

const statusTTL = 30 * time.Minute

// RunRequest describes one triage run. Suites may be supplied inline, or
// read from the runner's artifacts on disk.
type RunRequest struct {
	ResultsPath string
	SpecsPath   string
	MaxWorkers  int
	Suites      []models.SuiteInput
}

// Service orchestrates triage runs.
type Service struct {
	store    store.Store
	cache    cache.Cache
	registry *signature.Registry
	prober   probe.Prober
	cfg      config.PipelineConfig
	probeTO  time.Duration

	mu     sync.Mutex
	active map[uuid.UUID]*pipeline.Orchestrator
}

// NewService creates a triage Service. prober may be nil (probing disabled).
func NewService(st store.Store, ca cache.Cache, reg *signature.Registry, prober probe.Prober, cfg config.PipelineConfig, probeTimeout time.Duration) *Service {
	return &Service{
		store:    st,
		cache:    ca,
		registry: reg,
		prober:   prober,
		cfg:      cfg,
		probeTO:  probeTimeout,
		active:   make(map[uuid.UUID]*pipeline.Orchestrator),
	}
}

// StartRun creates a pending run and dispatches processing in a background
// goroutine. Returns the run immediately without waiting for completion.
func (s *Service) StartRun(ctx context.Context, req RunRequest) (*models.Run, error) {
	if req.ResultsPath == "" && len(req.Suites) == 0 {
		return nil, fmt.Errorf("invalid run request: results_path or inline suites required")
	}

	run := &models.Run{
		ID:              uuid.New(),
		Status:          models.RunStatusPending,
		ResultsPath:     req.ResultsPath,
		SpecsPath:       req.SpecsPath,
		SuitesRequested: len(req.Suites),
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	_ = s.cache.SetRunStatus(ctx, run.ID, models.RunStatusPending, statusTTL)

	go s.executeRun(run.ID, req)

	return run, nil
}

// Progress returns the orchestrator snapshot for an in-flight run, if any.
func (s *Service) Progress(runID uuid.UUID) (pipeline.Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orch, ok := s.active[runID]
	if !ok {
		return pipeline.Progress{}, false
	}
	return orch.Snapshot(), true
}

// executeRun performs the whole run in a goroutine. It recovers from panics
// and always leaves the run in a terminal state.
func (s *Service) executeRun(runID uuid.UUID, req RunRequest) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in triage run", "run_id", runID, "error", r)
			s.markFailed(ctx, runID, fmt.Sprintf("panic: %v", r))
		}
		s.mu.Lock()
		delete(s.active, runID)
		s.mu.Unlock()
	}()

	now := time.Now().UTC()
	_ = s.store.UpdateRunStatus(ctx, runID, models.RunStatusRunning, store.WithStartedAt(now))
	_ = s.cache.SetRunStatus(ctx, runID, models.RunStatusRunning, statusTTL)

	inputs, err := s.loadInputs(req)
	if err != nil {
		s.markFailed(ctx, runID, err.Error())
		return
	}
	if len(inputs) == 0 {
		s.markFailed(ctx, runID, "no suites found in input")
		return
	}
	_ = s.store.UpdateRunStatus(ctx, runID, models.RunStatusRunning, store.WithSuitesRequested(len(inputs)))

	workers := s.cfg.MaxWorkers
	if req.MaxWorkers > 0 && req.MaxWorkers < workers {
		workers = req.MaxWorkers
	}

	opts := []pipeline.Option{
		pipeline.WithMaxWorkers(workers),
		pipeline.WithSuiteTimeout(s.cfg.SuiteTimeout),
		pipeline.WithOnComplete(func(out pipeline.SuiteOutcome) {
			s.persistSuite(ctx, runID, out)
		}),
	}
	if s.prober != nil {
		opts = append(opts, pipeline.WithProber(s.prober, s.probeTO))
	}
	orch := pipeline.New(s.registry, opts...)

	s.mu.Lock()
	s.active[runID] = orch
	s.mu.Unlock()

	outcomes := orch.Run(ctx, inputs)

	// Sequential barrier: aggregation only sees the completed set.
	var suites []aggregate.SuiteVerdicts
	completed, failed := 0, 0
	for _, out := range outcomes {
		if out.Failed() {
			failed++
			continue
		}
		completed++
		suites = append(suites, aggregate.SuiteVerdicts{
			Suite:      out.Suite,
			Container:  out.Container,
			Classified: out.Classified,
		})
	}

	res := aggregate.Aggregate(suites, len(inputs))
	if err := s.store.CreateBugEntries(ctx, runID, res.Entries); err != nil {
		slog.Error("storing bug entries", "run_id", runID, "error", err)
	}
	_ = s.cache.Set(ctx, cache.BugReportKey(runID), []byte(aggregate.Markdown(res)), statusTTL)

	status := models.RunStatusCompleted
	switch {
	case completed == 0:
		status = models.RunStatusFailed
	case failed > 0 || res.Partial:
		status = models.RunStatusPartial
	}

	_ = s.store.UpdateRunStatus(ctx, runID, status,
		store.WithSuiteCounts(completed, failed),
		store.WithCompletedAt(time.Now().UTC()))
	_ = s.cache.SetRunStatus(ctx, runID, status, statusTTL)

	slog.Info("triage run finished", "run_id", runID, "status", status,
		"suites_completed", completed, "suites_failed", failed, "bug_entries", len(res.Entries))
}

// loadInputs resolves the run's suite inputs and attaches expectation specs.
func (s *Service) loadInputs(req RunRequest) ([]models.SuiteInput, error) {
	inputs := req.Suites
	if len(inputs) == 0 {
		var skipped int
		var err error
		inputs, skipped, err = ingest.ReadResultsFile(req.ResultsPath)
		if err != nil {
			return nil, fmt.Errorf("reading results: %w", err)
		}
		if skipped > 0 {
			slog.Warn("skipped unclassifiable records at ingest", "path", req.ResultsPath, "skipped", skipped)
		}
	}

	if req.SpecsPath != "" {
		sets, err := ingest.LoadExpectationsDir(req.SpecsPath)
		if err != nil {
			return nil, fmt.Errorf("loading expectations: %w", err)
		}
		for i := range inputs {
			if inputs[i].Expectations == nil {
				inputs[i].Expectations = sets[inputs[i].Suite]
			}
		}
	}

	return inputs, nil
}

// persistSuite stores one suite's outcome as soon as its worker finishes, so
// partial results are inspectable mid-run.
func (s *Service) persistSuite(ctx context.Context, runID uuid.UUID, out pipeline.SuiteOutcome) {
	row := &models.SuiteReportRow{
		ID:        uuid.New(),
		RunID:     runID,
		Suite:     out.Suite,
		Container: out.Container,
		CreatedAt: time.Now().UTC(),
	}

	if out.Failed() {
		note := out.Err.Error()
		row.Status = models.SuiteStatusFailed
		row.FailureNote = &note
	} else {
		row.Status = models.SuiteStatusAnalyzed
		row.Report = out.Report
		row.Markdown = report.Markdown(*out.Report)
		_ = s.cache.Set(ctx, cache.SuiteReportKey(runID, out.Suite), []byte(row.Markdown), statusTTL)
	}

	if err := s.store.CreateSuiteReport(ctx, row); err != nil {
		slog.Error("storing suite report", "run_id", runID, "suite", out.Suite, "error", err)
	}
}

func (s *Service) markFailed(ctx context.Context, runID uuid.UUID, msg string) {
	_ = s.store.UpdateRunStatus(ctx, runID, models.RunStatusFailed,
		store.WithErrorMessage(msg),
		store.WithCompletedAt(time.Now().UTC()))
	_ = s.cache.SetRunStatus(ctx, runID, models.RunStatusFailed, statusTTL)
}
