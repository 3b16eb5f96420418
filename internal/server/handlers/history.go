package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/visionforge/visionforge/internal/errors"
	"github.com/visionforge/visionforge/internal/store"
	"github.com/visionforge/visionforge/internal/workflow"
)

const maxRunsLimit = 200

// Runs handles GET /v1/runs?limit=N, newest first.
func (a *API) Runs(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		unavailable(w, r, "run history")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, r, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := a.History.ListRuns(r.Context(), limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

type runDetail struct {
	store.RunRecord
	Results []workflow.CardResult `json:"results"`
}

// Run handles GET /v1/runs/{id}.
func (a *API) Run(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		unavailable(w, r, "run history")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := a.History.GetRun(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if run == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("run "+id+" not found"))
		return
	}

	results, err := a.History.ListResults(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if results == nil {
		results = []workflow.CardResult{}
	}
	writeJSON(w, http.StatusOK, runDetail{RunRecord: *run, Results: results})
}
