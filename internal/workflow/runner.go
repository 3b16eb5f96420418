package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/ailink/encode"
	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/metrics"
	"github.com/visionforge/visionforge/internal/response"
	"github.com/visionforge/visionforge/internal/technique"
)

// Run statuses.
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
	StatusCancelled           = "cancelled"
)

// Card error codes for failures that happen before the gateway is called.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeImageNotFound    = "IMAGE_NOT_FOUND"
	CodeAnalysisFailed   = "ANALYSIS_FAILED"
)

// Analyzer submits one prompt with its images. *ailink.Service satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req ailink.AnalyzeRequest) (*ailink.AnalyzeResult, error)
}

// Recorder persists run history.
type Recorder interface {
	StartRun(ctx context.Context, run *RunResult) error
	RecordResult(ctx context.Context, runID string, result CardResult) error
	FinishRun(ctx context.Context, run *RunResult) error
}

// CardResult is the outcome of one card.
type CardResult struct {
	CardID    string             `json:"cardId"`
	Index     int                `json:"index"`
	Title     string             `json:"title,omitempty"`
	Technique technique.Kind     `json:"technique"`
	Prompt    string             `json:"prompt,omitempty"`
	Response  response.Processed `json:"response"`
	Model     string             `json:"model,omitempty"`
	Provider  string             `json:"provider,omitempty"`
	Usage     *driver.Usage      `json:"usage,omitempty"`
	OK        bool               `json:"ok"`
	Error     string             `json:"error,omitempty"`
	ErrorCode string             `json:"errorCode,omitempty"`
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
}

// RunResult is the outcome of a workflow run.
type RunResult struct {
	RunID        string       `json:"runId"`
	WorkflowID   string       `json:"workflowId"`
	WorkflowName string       `json:"workflowName"`
	Status       string       `json:"status"`
	Results      []CardResult `json:"results"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt,omitzero"`
}

// Failed counts failed cards.
func (r *RunResult) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK {
			n++
		}
	}
	return n
}

// Runner executes cards strictly in order.
type Runner struct {
	Analyzer Analyzer
	// Images resolves card image ids. Ids that are already data or http(s)
	// URLs are passed through without it.
	Images   *imageset.Library
	Recorder Recorder
	Logger   *logging.Logger

	Model            string
	StopOnError      bool
	StructuredOutput bool
	OutputStructure  string
	// DefaultContext applies to cards that set no context mode.
	DefaultContext ContextMode
	// DrawMarkups burns visual-pointing markups into the card's library
	// image before upload.
	DrawMarkups bool
	Clock       func() time.Time
}

// Run executes wf. With StopOnError the first failing card ends the run and
// its error is returned; otherwise failures are recorded and later cards
// still run. Cancelling ctx stops before the next card.
func (r *Runner) Run(ctx context.Context, wf *Workflow) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Analyzer == nil {
		return nil, errors.New("workflow runner has no analyzer")
	}
	if wf == nil || len(wf.Cards) == 0 {
		return nil, errors.New("workflow has no cards")
	}
	wf.Normalize()

	run := &RunResult{
		RunID:        uuid.NewString(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Status:       StatusRunning,
		Results:      make([]CardResult, 0, len(wf.Cards)),
		StartedAt:    r.now(),
	}
	r.record("start run", func() error { return r.Recorder.StartRun(ctx, run) })
	r.info("Workflow run started",
		zap.String("run_id", run.RunID),
		zap.String("workflow", wf.Name),
		zap.Int("cards", len(wf.Cards)))

	responses := make(map[string]*response.Processed, len(wf.Cards))
	var runErr error
	for i, card := range wf.Cards {
		if err := ctx.Err(); err != nil {
			run.Status = StatusCancelled
			runErr = err
			break
		}

		res := r.runCard(ctx, wf, i, responses)
		run.Results = append(run.Results, res)
		if res.OK {
			processed := res.Response
			responses[card.ID] = &processed
		}
		r.record("record result", func() error { return r.Recorder.RecordResult(ctx, run.RunID, res) })
		metrics.RecordCardRun(string(res.Technique), res.OK, res.Duration)

		if !res.OK {
			r.warn("Card failed",
				zap.String("run_id", run.RunID),
				zap.Int("card", i+1),
				zap.String("technique", string(res.Technique)),
				zap.String("code", res.ErrorCode),
				zap.String("error", res.Error))
			if errors.Is(ctx.Err(), context.Canceled) {
				run.Status = StatusCancelled
				runErr = ctx.Err()
				break
			}
			if r.StopOnError {
				run.Status = StatusFailed
				runErr = fmt.Errorf("card %d (%s): %s", i+1, card.Label(i), res.Error)
				break
			}
		}
	}

	if run.Status == StatusRunning {
		run.Status = StatusCompleted
		if run.Failed() > 0 {
			run.Status = StatusCompletedWithErrors
		}
	}
	run.FinishedAt = r.now()
	r.record("finish run", func() error { return r.Recorder.FinishRun(context.WithoutCancel(ctx), run) })
	r.info("Workflow run finished",
		zap.String("run_id", run.RunID),
		zap.String("status", run.Status),
		zap.Int("failed", run.Failed()),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)))
	return run, runErr
}

func (r *Runner) runCard(ctx context.Context, wf *Workflow, index int, responses map[string]*response.Processed) CardResult {
	card := wf.Cards[index]
	kind := card.Technique.Kind()
	started := r.now()
	res := CardResult{
		CardID:    card.ID,
		Index:     index,
		Title:     card.Title,
		Technique: kind,
		StartedAt: started,
	}
	fail := func(code string, err error) CardResult {
		res.Response = response.ErrorResponse(err)
		res.Error = err.Error()
		res.ErrorCode = code
		res.Duration = r.now().Sub(started)
		return res
	}

	prompt, err := r.BuildPrompt(wf, index, responses)
	if err != nil {
		return fail(CodeValidationFailed, err)
	}
	res.Prompt = prompt

	if err := technique.CheckTargetImage(card.Technique.Config, len(card.ImageIDs())); err != nil {
		return fail(CodeValidationFailed, err)
	}
	images, err := r.cardImages(card)
	if err != nil {
		var missing *imageset.MissingError
		if errors.As(err, &missing) {
			return fail(CodeImageNotFound, err)
		}
		return fail(CodeValidationFailed, err)
	}

	out, err := r.Analyzer.Analyze(ctx, ailink.AnalyzeRequest{
		Images:    images,
		Prompt:    prompt,
		Model:     r.Model,
		Technique: kind,
	})
	if err != nil {
		var gerr *ailink.GatewayError
		if errors.As(err, &gerr) {
			return fail(gerr.Code, err)
		}
		return fail(CodeAnalysisFailed, err)
	}

	res.Response = response.Process(out.Text)
	metrics.RecordResponseProcessed(string(res.Response.Confidence))
	res.Model = out.Model
	res.Provider = out.Provider
	res.Usage = out.Usage
	res.OK = true
	res.Duration = r.now().Sub(started)
	return res
}

// BuildPrompt returns the prompt for the card at index: the technique
// prompt, the structured output request when enabled, and context from the
// most recent earlier response when the card asks for it.
func (r *Runner) BuildPrompt(wf *Workflow, index int, responses map[string]*response.Processed) (string, error) {
	card := wf.Cards[index]
	prompt, err := technique.Build(card.Technique.Config)
	metrics.RecordPromptBuild(string(card.Technique.Kind()), err == nil)
	if err != nil {
		return "", err
	}
	if r.StructuredOutput {
		prompt = technique.AddStructuredOutputRequest(prompt, r.OutputStructure)
	}

	mode := card.Context.Mode
	if mode == ContextNone {
		mode = r.DefaultContext
	}
	switch mode {
	case ContextNone:
		return prompt, nil
	case ContextCustom:
		return WithContext(prompt, card.Context.Custom), nil
	default:
		previous := SequenceContext(wf.Cards, responses, index)
		if len(previous) == 0 {
			return prompt, nil
		}
		return WithContext(prompt, ContextFor(previous[len(previous)-1], mode, "")), nil
	}
}

func (r *Runner) cardImages(card Card) ([]string, error) {
	vp, ok := card.Technique.Config.(technique.VisualPointingConfig)
	if !ok || !r.DrawMarkups || r.Images == nil || encode.IsImageReference(vp.ImageID) {
		return r.resolveImages(card.ImageIDs())
	}
	url, err := r.Images.Annotated(strings.TrimSpace(vp.ImageID), vp.Markups)
	if err != nil {
		return nil, err
	}
	return []string{url}, nil
}

func (r *Runner) resolveImages(ids []string) ([]string, error) {
	urls := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if encode.IsImageReference(id) {
			urls = append(urls, id)
			continue
		}
		if r.Images == nil {
			missing = append(missing, id)
			continue
		}
		resolved, err := r.Images.Resolve([]string{id})
		if err != nil {
			missing = append(missing, id)
			continue
		}
		urls = append(urls, resolved...)
	}
	if len(missing) > 0 {
		return nil, &imageset.MissingError{IDs: missing}
	}
	return urls, nil
}

func (r *Runner) record(op string, fn func() error) {
	if r.Recorder == nil {
		return
	}
	if err := fn(); err != nil {
		r.warn("Run history write failed", zap.String("op", op), zap.Error(err))
	}
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *Runner) info(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Info(msg, fields...)
	}
}

func (r *Runner) warn(msg string, fields ...zap.Field) {
	if r.Logger != nil {
		r.Logger.Warn(msg, fields...)
	}
}
