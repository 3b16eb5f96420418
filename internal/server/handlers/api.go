// Package handlers implements the visionforge HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	apperrors "github.com/visionforge/visionforge/internal/errors"
	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/store"
	"github.com/visionforge/visionforge/internal/workflow"
)

// History reads persisted workflow runs. *store.Store satisfies it.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	GetRun(ctx context.Context, id string) (*store.RunRecord, error)
	ListResults(ctx context.Context, runID string) ([]workflow.CardResult, error)
}

// API holds the collaborators behind the /v1 routes. Nil collaborators
// turn their routes into 503 SERVICE_UNAVAILABLE responses.
type API struct {
	Analyzer  workflow.Analyzer
	Templates *workflow.TemplateRegistry
	History   History
	// Recorder persists runs started through the API.
	Recorder workflow.Recorder
	Logger   *logging.Logger

	ImageOptions   imageset.Options
	DefaultModel   string
	DefaultContext workflow.ContextMode
	DrawMarkups    bool
	// MaxImages caps the images accepted by one analyze call.
	MaxImages int
}

const defaultMaxImages = 20

func (a *API) maxImages() int {
	if a.MaxImages > 0 {
		return a.MaxImages
	}
	return defaultMaxImages
}

// decodeJSON reads exactly one JSON document from the body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.NewInvalidInputError("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return err
		}
		if stderrors.Is(err, io.EOF) {
			return apperrors.NewInvalidInputError("request body is required")
		}
		return apperrors.WrapInvalidInput(r.Context(), err, "invalid JSON body: "+err.Error())
	}
	if dec.More() {
		return apperrors.NewInvalidInputError("request body must contain a single JSON document")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func unavailable(w http.ResponseWriter, r *http.Request, what string) {
	respondWithError(w, r, apperrors.NewUnavailableError(fmt.Sprintf("%s is not configured", what)))
}

func required(field string) error {
	return apperrors.NewInvalidInputError(strings.TrimSpace(field) + " is required")
}
