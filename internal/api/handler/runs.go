// Package handler contains the HTTP handlers for the Triage API. Handlers
// depend on narrow interfaces so tests can inject fakes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dverstak/triage/internal/api/response"
	"github.com/dverstak/triage/internal/pipeline"
	"github.com/dverstak/triage/internal/store"
	"github.com/dverstak/triage/internal/triage"
	"github.com/dverstak/triage/pkg/models"
)

// RunService is the subset of the triage service the run handlers need.
type RunService interface {
	StartRun(ctx context.Context, req triage.RunRequest) (*models.Run, error)
	Progress(runID uuid.UUID) (pipeline.Progress, bool)
}

// RunStore is the subset of the store the run handlers need.
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*models.Run, error)
}

// NewStartRunHandler returns an http.HandlerFunc for POST /api/v1/runs.
func NewStartRunHandler(svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResultsPath string              `json:"results_path"`
			SpecsPath   string              `json:"specs_path"`
			MaxWorkers  int                 `json:"max_workers"`
			Suites      []models.SuiteInput `json:"suites"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.ResultsPath == "" && len(req.Suites) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"results_path or suites is required", nil)
			return
		}
		if req.MaxWorkers < 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"max_workers must not be negative", nil)
			return
		}

		run, err := svc.StartRun(r.Context(), triage.RunRequest{
			ResultsPath: req.ResultsPath,
			SpecsPath:   req.SpecsPath,
			MaxWorkers:  req.MaxWorkers,
			Suites:      req.Suites,
		})
		if err != nil {
			response.Error(w, http.StatusUnprocessableEntity, "RUN_REJECTED", err.Error(), nil)
			return
		}

		response.Accepted(w, run)
	}
}

// NewGetRunHandler returns an http.HandlerFunc for GET /api/v1/runs/{runID}.
// In-flight runs include a live progress block.
func NewGetRunHandler(st RunStore, svc RunService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, ok := parseRunID(w, r)
		if !ok {
			return
		}

		run, err := st.GetRun(r.Context(), runID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Run not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load run", nil)
			return
		}

		body := map[string]any{"run": run}
		if progress, active := svc.Progress(runID); active {
			body["progress"] = progress
		}
		response.JSON(w, body)
	}
}

// NewListRunsHandler returns an http.HandlerFunc for GET /api/v1/runs.
func NewListRunsHandler(st RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := st.ListRuns(r.Context(), 50)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs", nil)
			return
		}
		if runs == nil {
			runs = []*models.Run{}
		}
		response.JSON(w, runs)
	}
}

func parseRunID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "runID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
