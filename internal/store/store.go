package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dverstak/triage/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...RunUpdateOption) error

	CreateSuiteReport(ctx context.Context, row *models.SuiteReportRow) error
	ListSuiteReports(ctx context.Context, runID uuid.UUID) ([]*models.SuiteReportRow, error)
	GetSuiteReport(ctx context.Context, runID uuid.UUID, suite string) (*models.SuiteReportRow, error)

	CreateBugEntries(ctx context.Context, runID uuid.UUID, entries []models.BugEntry) error
	ListBugEntries(ctx context.Context, runID uuid.UUID) ([]models.BugEntry, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

type runUpdateParams struct {
	ErrorMessage    *string
	SuitesRequested *int
	SuitesCompleted *int
	SuitesFailed    *int
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

type RunUpdateOption func(*runUpdateParams)

func WithErrorMessage(msg string) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithSuitesRequested(n int) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.SuitesRequested = &n
	}
}

func WithSuiteCounts(completed, failed int) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.SuitesCompleted = &completed
		p.SuitesFailed = &failed
	}
}

func WithStartedAt(t time.Time) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.StartedAt = &t
	}
}

func WithCompletedAt(t time.Time) RunUpdateOption {
	return func(p *runUpdateParams) {
		p.CompletedAt = &t
	}
}
