package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dverstak/triage/internal/aggregate"
	"github.com/dverstak/triage/internal/api/response"
	"github.com/dverstak/triage/internal/store"
	"github.com/dverstak/triage/pkg/models"
)

// BugStore is the subset of the store the defects handler needs.
type BugStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListBugEntries(ctx context.Context, runID uuid.UUID) ([]models.BugEntry, error)
}

// NewListBugsHandler returns an http.HandlerFunc for
// GET /api/v1/runs/{runID}/bugs. With ?format=markdown the consolidated
// defects report is returned as text/markdown.
func NewListBugsHandler(st BugStore) http.HandlerFunc {
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

		entries, err := st.ListBugEntries(r.Context(), runID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list bug entries", nil)
			return
		}

		res := aggregate.Result{
			Entries: entries,
			Partial: run.Status == models.RunStatusPartial,
		}

		if r.URL.Query().Get("format") == "markdown" {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			_, _ = w.Write([]byte(aggregate.Markdown(res)))
			return
		}

		response.JSON(w, res)
	}
}
