package triage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverstak/triage/internal/config"
	"github.com/dverstak/triage/internal/signature"
	"github.com/dverstak/triage/internal/store"
	"github.com/dverstak/triage/internal/triage"
	"github.com/dverstak/triage/pkg/models"
)

func intPtr(n int) *int { return &n }

// --- fakes ---

type fakeStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]*models.Run
	reports map[uuid.UUID][]*models.SuiteReportRow
	bugs    map[uuid.UUID][]models.BugEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:    make(map[uuid.UUID]*models.Run),
		reports: make(map[uuid.UUID][]*models.SuiteReportRow),
		bugs:    make(map[uuid.UUID][]models.BugEntry),
	}
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) CreateRun(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id uuid.UUID) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *fakeStore) ListRuns(context.Context, int) ([]*models.Run, error) { return nil, nil }

func (s *fakeStore) UpdateRunStatus(_ context.Context, id uuid.UUID, status string, opts ...store.RunUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Status = status
	return nil
}

func (s *fakeStore) CreateSuiteReport(_ context.Context, row *models.SuiteReportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[row.RunID] = append(s.reports[row.RunID], row)
	return nil
}

func (s *fakeStore) ListSuiteReports(_ context.Context, runID uuid.UUID) ([]*models.SuiteReportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.SuiteReportRow(nil), s.reports[runID]...), nil
}

func (s *fakeStore) GetSuiteReport(_ context.Context, runID uuid.UUID, suite string) (*models.SuiteReportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.reports[runID] {
		if row.Suite == suite {
			return row, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) CreateBugEntries(_ context.Context, runID uuid.UUID, entries []models.BugEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bugs[runID] = entries
	return nil
}

func (s *fakeStore) ListBugEntries(_ context.Context, runID uuid.UUID) ([]models.BugEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bugs[runID], nil
}

func (s *fakeStore) GetAPIKeyByPrefix(context.Context, string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *fakeStore) UpdateAPIKeyLastUsed(context.Context, uuid.UUID) error { return nil }
func (s *fakeStore) CreateAPIKey(context.Context, *models.APIKey) error    { return nil }
func (s *fakeStore) ListAPIKeys(context.Context) ([]*models.APIKey, error) { return nil, nil }
func (s *fakeStore) RevokeAPIKey(context.Context, uuid.UUID) error         { return nil }

type fakeCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
	data     map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{statuses: make(map[uuid.UUID]string), data: make(map[string][]byte)}
}

func (c *fakeCache) Ping(context.Context) error { return nil }

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) SetRunStatus(_ context.Context, runID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[runID] = status
	return nil
}

func (c *fakeCache) GetRunStatus(_ context.Context, runID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.statuses[runID]
	return v, ok, nil
}

func (c *fakeCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

// --- helpers ---

func newService(st *fakeStore, ca *fakeCache) *triage.Service {
	return triage.NewService(st, ca, signature.Default(), nil,
		config.PipelineConfig{MaxWorkers: 2, SuiteTimeout: time.Minute}, time.Second)
}

func waitTerminal(t *testing.T, st *fakeStore, runID uuid.UUID) *models.Run {
	t.Helper()
	var run *models.Run
	require.Eventually(t, func() bool {
		var err error
		run, err = st.GetRun(context.Background(), runID)
		if err != nil {
			return false
		}
		switch run.Status {
		case models.RunStatusCompleted, models.RunStatusPartial, models.RunStatusFailed:
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "run never reached a terminal state")
	return run
}

func passingSuite(suite string) models.SuiteInput {
	return models.SuiteInput{
		Suite: suite, Container: "img-" + suite,
		Records: []models.TestResultRecord{
			{Suite: suite, Test: "t1", Passed: true, ExitCode: intPtr(0)},
			{Suite: suite, Test: "t2", Passed: true, ExitCode: intPtr(0)},
		},
	}
}

// --- tests ---

func TestStartRun_RejectsEmptyRequest(t *testing.T) {
	svc := newService(newFakeStore(), newFakeCache())
	_, err := svc.StartRun(context.Background(), triage.RunRequest{})
	require.Error(t, err)
}

func TestStartRun_CompletesInlineSuites(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, newFakeCache())

	run, err := svc.StartRun(context.Background(), triage.RunRequest{
		Suites: []models.SuiteInput{passingSuite("gcc"), passingSuite("jq")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, run.Status)

	final := waitTerminal(t, st, run.ID)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	reports, err := st.ListSuiteReports(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, row := range reports {
		assert.Equal(t, models.SuiteStatusAnalyzed, row.Status)
		require.NotNil(t, row.Report)
		assert.NotEmpty(t, row.Markdown)
	}
}

func TestStartRun_PartialWhenASuiteFails(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, newFakeCache())

	run, err := svc.StartRun(context.Background(), triage.RunRequest{
		Suites: []models.SuiteInput{
			passingSuite("good"),
			{Suite: "empty", Container: "img-empty"}, // no records: suite-level failure
		},
	})
	require.NoError(t, err)

	final := waitTerminal(t, st, run.ID)
	assert.Equal(t, models.RunStatusPartial, final.Status)

	row, err := st.GetSuiteReport(context.Background(), run.ID, "empty")
	require.NoError(t, err)
	assert.Equal(t, models.SuiteStatusFailed, row.Status)
	require.NotNil(t, row.FailureNote)
	assert.Contains(t, *row.FailureNote, "no records")
}

func TestStartRun_FailedWhenResultsFileMissing(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, newFakeCache())

	run, err := svc.StartRun(context.Background(), triage.RunRequest{
		ResultsPath: filepath.Join(t.TempDir(), "absent.jsonl"),
	})
	require.NoError(t, err, "ingest errors surface on the run, not the request")

	final := waitTerminal(t, st, run.ID)
	assert.Equal(t, models.RunStatusFailed, final.Status)
}

func TestStartRun_ReadsArtifactsFromDisk(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "test_results.jsonl")
	require.NoError(t, os.WriteFile(results, []byte(
		`{"suite":"gcc","container":"docker.io/gcc:13","test":"version","passed":true,"exit_code":0,"stdout":"gcc 13.2"}`+"\n"+
			`{"suite":"gcc","container":"docker.io/gcc:13","test":"compile","passed":false,"exit_code":1,"stderr":"error while loading shared libraries: libmpc.so.3: cannot open"}`+"\n",
	), 0o644))

	specs := filepath.Join(dir, "specs")
	require.NoError(t, os.Mkdir(specs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(specs, "gcc.yaml"), []byte(
		"name: gcc\ntests:\n  - name: version\n    expected_exit_code: 0\n    expected_output_contains: \"gcc\"\n",
	), 0o644))

	st := newFakeStore()
	svc := newService(st, newFakeCache())

	run, err := svc.StartRun(context.Background(), triage.RunRequest{
		ResultsPath: results,
		SpecsPath:   specs,
	})
	require.NoError(t, err)

	final := waitTerminal(t, st, run.ID)
	assert.Equal(t, models.RunStatusCompleted, final.Status)

	row, err := st.GetSuiteReport(context.Background(), run.ID, "gcc")
	require.NoError(t, err)
	require.NotNil(t, row.Report)
	assert.Equal(t, 2, row.Report.Total)
	assert.Equal(t, 1, row.Report.Counts.TruePositive)
	assert.Equal(t, 1, row.Report.Counts.TrueNegative)

	bugs, err := st.ListBugEntries(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, bugs, 1)
	assert.Equal(t, "missing shared library", bugs[0].Category)
}

func TestStartRun_CachesRunStatus(t *testing.T) {
	st := newFakeStore()
	ca := newFakeCache()
	svc := newService(st, ca)

	run, err := svc.StartRun(context.Background(), triage.RunRequest{
		Suites: []models.SuiteInput{passingSuite("gcc")},
	})
	require.NoError(t, err)

	waitTerminal(t, st, run.ID)

	require.Eventually(t, func() bool {
		status, ok, _ := ca.GetRunStatus(context.Background(), run.ID)
		return ok && status == models.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProgress_UnknownRunInactive(t *testing.T) {
	svc := newService(newFakeStore(), newFakeCache())
	_, active := svc.Progress(uuid.New())
	assert.False(t, active)
}
