package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/dverstak/triage/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, results_path, specs_path, suites_requested, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Status, run.ResultsPath, run.SpecsPath, run.SuitesRequested, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var r models.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, results_path, specs_path, suites_requested, suites_completed, suites_failed,
		        error_message, started_at, completed_at, created_at, updated_at
		 FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.Status, &r.ResultsPath, &r.SpecsPath, &r.SuitesRequested, &r.SuitesCompleted,
		&r.SuitesFailed, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, results_path, specs_path, suites_requested, suites_completed, suites_failed,
		        error_message, started_at, completed_at, created_at, updated_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.Status, &r.ResultsPath, &r.SpecsPath, &r.SuitesRequested,
			&r.SuitesCompleted, &r.SuitesFailed, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error {
	var p runUpdateParams
	for _, opt := range opts {
		opt(&p)
	}

	sets := []string{"status = $2", "updated_at = NOW()"}
	args := []any{id, status}

	appendSet := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.ErrorMessage != nil {
		appendSet("error_message", *p.ErrorMessage)
	}
	if p.SuitesRequested != nil {
		appendSet("suites_requested", *p.SuitesRequested)
	}
	if p.SuitesCompleted != nil {
		appendSet("suites_completed", *p.SuitesCompleted)
	}
	if p.SuitesFailed != nil {
		appendSet("suites_failed", *p.SuitesFailed)
	}
	if p.StartedAt != nil {
		appendSet("started_at", *p.StartedAt)
	}
	if p.CompletedAt != nil {
		appendSet("completed_at", *p.CompletedAt)
	}

	query := fmt.Sprintf("UPDATE runs SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Suite Reports ---

func (s *PostgresStore) CreateSuiteReport(ctx context.Context, row *models.SuiteReportRow) error {
	var reportJSON []byte
	if row.Report != nil {
		var err error
		reportJSON, err = json.Marshal(row.Report)
		if err != nil {
			return fmt.Errorf("marshal suite report: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO suite_reports (id, run_id, suite, container, status, failure_note, report, markdown, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID, row.RunID, row.Suite, row.Container, row.Status, row.FailureNote,
		reportJSON, row.Markdown, row.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create suite report: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSuiteReports(ctx context.Context, runID uuid.UUID) ([]*models.SuiteReportRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, suite, container, status, failure_note, report, markdown, created_at
		 FROM suite_reports WHERE run_id = $1 ORDER BY suite`, runID)
	if err != nil {
		return nil, fmt.Errorf("list suite reports: %w", err)
	}
	defer rows.Close()

	var out []*models.SuiteReportRow
	for rows.Next() {
		row, err := scanSuiteReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetSuiteReport(ctx context.Context, runID uuid.UUID, suite string) (*models.SuiteReportRow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_id, suite, container, status, failure_note, report, markdown, created_at
		 FROM suite_reports WHERE run_id = $1 AND suite = $2`, runID, suite)
	out, err := scanSuiteReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanSuiteReport(row pgx.Row) (*models.SuiteReportRow, error) {
	var r models.SuiteReportRow
	var reportJSON []byte
	if err := row.Scan(&r.ID, &r.RunID, &r.Suite, &r.Container, &r.Status, &r.FailureNote,
		&reportJSON, &r.Markdown, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan suite report: %w", err)
	}
	if len(reportJSON) > 0 {
		var rep models.SuiteReport
		if err := json.Unmarshal(reportJSON, &rep); err != nil {
			return nil, fmt.Errorf("unmarshal suite report: %w", err)
		}
		r.Report = &rep
	}
	return &r, nil
}

// --- Bug Entries ---

func (s *PostgresStore) CreateBugEntries(ctx context.Context, runID uuid.UUID, entries []models.BugEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bug entries tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for i, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO bug_entries (id, run_id, position, container, category, severity, fingerprint,
			                          affected_tests, total_tests, pass_rate, evidence, suites, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			uuid.New(), runID, i, e.Container, e.Category, e.Severity, e.Fingerprint,
			e.AffectedTests, e.TotalTests, e.PassRate, e.Evidence, e.Suites, now)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create bug entry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListBugEntries(ctx context.Context, runID uuid.UUID) ([]models.BugEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT container, category, severity, fingerprint, affected_tests, total_tests, pass_rate, evidence, suites
		 FROM bug_entries WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list bug entries: %w", err)
	}
	defer rows.Close()

	var entries []models.BugEntry
	for rows.Next() {
		var e models.BugEntry
		if err := rows.Scan(&e.Container, &e.Category, &e.Severity, &e.Fingerprint,
			&e.AffectedTests, &e.TotalTests, &e.PassRate, &e.Evidence, &e.Suites); err != nil {
			return nil, fmt.Errorf("scan bug entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
