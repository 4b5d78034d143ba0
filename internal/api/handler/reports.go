package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dverstak/triage/internal/api/response"
	"github.com/dverstak/triage/internal/store"
	"github.com/dverstak/triage/pkg/models"
)

// ReportStore is the subset of the store the report handlers need.
type ReportStore interface {
	ListSuiteReports(ctx context.Context, runID uuid.UUID) ([]*models.SuiteReportRow, error)
	GetSuiteReport(ctx context.Context, runID uuid.UUID, suite string) (*models.SuiteReportRow, error)
}

// NewListReportsHandler returns an http.HandlerFunc for
// GET /api/v1/runs/{runID}/reports. Failed suites appear as explicit
// not-analyzed entries alongside analyzed ones.
func NewListReportsHandler(st ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, ok := parseRunID(w, r)
		if !ok {
			return
		}

		rows, err := st.ListSuiteReports(r.Context(), runID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reports", nil)
			return
		}
		if rows == nil {
			rows = []*models.SuiteReportRow{}
		}
		response.JSON(w, rows)
	}
}

// NewGetReportHandler returns an http.HandlerFunc for
// GET /api/v1/runs/{runID}/reports/{suite}. With ?format=markdown the
// rendered report is returned as text/markdown.
func NewGetReportHandler(st ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, ok := parseRunID(w, r)
		if !ok {
			return
		}
		suite := chi.URLParam(r, "suite")

		row, err := st.GetSuiteReport(r.Context(), runID, suite)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Suite report not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load report", nil)
			return
		}

		if r.URL.Query().Get("format") == "markdown" {
			if row.Status != models.SuiteStatusAnalyzed {
				response.Error(w, http.StatusConflict, "NOT_ANALYZED",
					"Suite was not analyzed; no markdown report available", row.FailureNote)
				return
			}
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			_, _ = w.Write([]byte(row.Markdown))
			return
		}

		response.JSON(w, row)
	}
}
