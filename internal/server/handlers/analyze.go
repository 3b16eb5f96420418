package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/ailink/encode"
	apperrors "github.com/visionforge/visionforge/internal/errors"
	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/metrics"
	"github.com/visionforge/visionforge/internal/response"
	"github.com/visionforge/visionforge/internal/technique"
	"github.com/visionforge/visionforge/internal/workflow"
)

type analyzeRequest struct {
	Technique *technique.Technique `json:"technique"`
	// Images are data URLs or http(s) URLs in the order the technique
	// expects. When empty, technique image ids that are already URLs are used.
	Images      []string `json:"images"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Structured  bool     `json:"structured,omitempty"`
	Structure   string   `json:"structure,omitempty"`
}

type analyzeResponse struct {
	Prompt   string             `json:"prompt"`
	Response response.Processed `json:"response"`
	Model    string             `json:"model"`
	Provider string             `json:"provider,omitempty"`
	Usage    *driver.Usage      `json:"usage,omitempty"`
}

// Analyze handles POST /v1/analyze: build the technique prompt, send it with
// the images, and return the processed response.
func (a *API) Analyze(w http.ResponseWriter, r *http.Request) {
	if a.Analyzer == nil {
		unavailable(w, r, "analysis gateway")
		return
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Technique == nil {
		respondWithError(w, r, required("technique"))
		return
	}

	kind := req.Technique.Kind()
	prompt, err := technique.Build(req.Technique.Config)
	metrics.RecordPromptBuild(string(kind), err == nil)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Structured {
		prompt = technique.AddStructuredOutputRequest(prompt, req.Structure)
	}

	images := req.Images
	if len(images) == 0 {
		for _, id := range technique.ImageIDs(req.Technique.Config) {
			if encode.IsImageReference(id) {
				images = append(images, id)
			}
		}
	}
	if err := technique.CheckTargetImage(req.Technique.Config, len(images)); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := a.checkImages(images); err != nil {
		respondWithError(w, r, err)
		return
	}

	model := req.Model
	if model == "" {
		model = a.DefaultModel
	}
	result, err := a.Analyzer.Analyze(r.Context(), ailink.AnalyzeRequest{
		Images:      images,
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Technique:   kind,
	})
	if err != nil {
		respondWithError(w, r, gatewayFailure(err))
		return
	}

	processed := response.Process(result.Text)
	metrics.RecordResponseProcessed(string(processed.Confidence))
	writeJSON(w, http.StatusOK, analyzeResponse{
		Prompt:   prompt,
		Response: processed,
		Model:    result.Model,
		Provider: result.Provider,
		Usage:    result.Usage,
	})
}

func (a *API) checkImages(images []string) error {
	if len(images) > a.maxImages() {
		return apperrors.NewInvalidInputError(fmt.Sprintf("too many images: %d (max %d)", len(images), a.maxImages()))
	}
	for i, img := range images {
		if !encode.IsImageReference(strings.TrimSpace(img)) {
			return apperrors.NewInvalidInputError(fmt.Sprintf("image %d must be a data URL or http(s) URL", i+1))
		}
	}
	return nil
}

// gatewayFailure keeps classified gateway errors and reports anything else
// from the analyzer (no usable provider, catalog limits) as unavailable.
func gatewayFailure(err error) error {
	var gwErr *ailink.GatewayError
	if stderrors.As(err, &gwErr) {
		return err
	}
	return apperrors.NewUnavailableError(err.Error())
}

type runRequest struct {
	Workflow *workflow.Workflow `json:"workflow"`
	// Images maps card image ids to data URLs.
	Images           map[string]string `json:"images,omitempty"`
	Model            string            `json:"model,omitempty"`
	StopOnError      bool              `json:"stop_on_error,omitempty"`
	StructuredOutput bool              `json:"structured_output,omitempty"`
}

// RunWorkflow handles POST /v1/workflows/run. Cards run in order within the
// request; the body is the full RunResult.
func (a *API) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	if a.Analyzer == nil {
		unavailable(w, r, "analysis gateway")
		return
	}

	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Workflow == nil || len(req.Workflow.Cards) == 0 {
		respondWithError(w, r, required("workflow with at least one card"))
		return
	}

	library := imageset.NewLibrary(a.ImageOptions)
	for id, ref := range req.Images {
		_, data, err := encode.ParseDataURL(ref)
		if err != nil {
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, fmt.Sprintf("image %q is not a valid data URL", id)))
			return
		}
		if _, err := library.AddWithID(id, id, data); err != nil {
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, fmt.Sprintf("image %q: %s", id, err.Error())))
			return
		}
	}

	model := req.Model
	if model == "" {
		model = a.DefaultModel
	}
	runner := &workflow.Runner{
		Analyzer:         a.Analyzer,
		Images:           library,
		Recorder:         a.Recorder,
		Logger:           a.Logger,
		Model:            model,
		StopOnError:      req.StopOnError,
		StructuredOutput: req.StructuredOutput,
		DefaultContext:   a.DefaultContext,
		DrawMarkups:      a.DrawMarkups,
	}
	run, err := runner.Run(r.Context(), req.Workflow)
	if run == nil {
		respondWithError(w, r, err)
		return
	}
	if err != nil && a.Logger != nil {
		a.Logger.Warn("Workflow run stopped early",
			zap.String("run_id", run.RunID),
			zap.String("status", run.Status),
			zap.Error(err))
	}
	writeJSON(w, http.StatusOK, run)
}
