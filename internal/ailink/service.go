package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visionforge/visionforge/internal/ailink/content"
	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/ailink/encode"
	"github.com/visionforge/visionforge/internal/metrics"
	"github.com/visionforge/visionforge/internal/technique"
)

const (
	defaultTimeout = 60 * time.Second
	maxTimeout     = 5 * time.Minute
)

// AnalyzeRequest is one submission to the gateway: ordered image references
// plus the prompt that refers to them.
type AnalyzeRequest struct {
	Images      []string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	// Technique tags the call for error guidance and metrics.
	Technique technique.Kind
}

// AnalyzeResult is the gateway's answer.
type AnalyzeResult struct {
	Text         string        `json:"text"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Usage        *driver.Usage `json:"usage,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Service submits prompts and images through the provider registry.
type Service struct {
	Providers *Registry
}

// NewService returns a service backed by providers.
func NewService(providers *Registry) *Service {
	return &Service{Providers: providers}
}

// Analyze validates the request, resolves a provider and sends the call.
// Driver failures come back as *GatewayError.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if s == nil || s.Providers == nil {
		return nil, errors.New("ailink provider registry not configured")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}
	for i, img := range req.Images {
		if !encode.IsImageReference(img) {
			return nil, fmt.Errorf("image %d is not a data url or http(s) url", i+1)
		}
	}

	cfg := s.Providers.Config()
	resolved, err := s.Providers.Resolve(RoleAnalysis, req.Model)
	if err != nil {
		return nil, err
	}
	if err := ValidateModelCapabilities(resolved.Model, len(req.Images), cfg.EnforceCatalog); err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	timeout := cfg.DefaultTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	timeout = min(timeout, maxTimeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := resolved.Driver.Complete(ctx, &driver.Request{
		Model:       resolved.Model,
		Messages:    []content.Message{content.UserMessage(req.Images, prompt)},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Metadata:    map[string]string{"technique": string(req.Technique)},
	})
	elapsed := time.Since(started)
	if err != nil {
		gerr := MapProviderError(err, req.Technique)
		metrics.RecordGatewayCall(resolved.ProviderID, resolved.Model, gerr.Code, elapsed)
		metrics.RecordGatewayError(gerr.Code, string(req.Technique), gerr.Retryable)
		return nil, gerr
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		metrics.RecordGatewayCall(resolved.ProviderID, resolved.Model, "empty", elapsed)
		return nil, &GatewayError{
			Code:        CodeError,
			Message:     "empty response content",
			UserMessage: "The AI service returned an empty response. Please try again.",
			Retryable:   true,
			Technique:   req.Technique,
		}
	}
	metrics.RecordGatewayCall(resolved.ProviderID, resolved.Model, "ok", elapsed)
	if resp.Usage != nil {
		metrics.RecordTokenUsage(resolved.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	model := resp.Model
	if model == "" {
		model = resolved.Model
	}
	return &AnalyzeResult{
		Text:         text,
		Model:        model,
		Provider:     resolved.ProviderID,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		Duration:     elapsed,
	}, nil
}

// ValidateKey checks the credential of the provider serving role.
func (s *Service) ValidateKey(ctx context.Context) (string, error) {
	if s == nil || s.Providers == nil {
		return "", errors.New("ailink provider registry not configured")
	}
	resolved, err := s.Providers.Resolve(RoleAnalysis, "")
	if err != nil {
		return "", err
	}
	validator, ok := resolved.Driver.(driver.KeyValidator)
	if !ok {
		return resolved.ProviderID, fmt.Errorf("driver %s cannot validate keys", resolved.Driver.Name())
	}
	if err := validator.ValidateKey(ctx); err != nil {
		return resolved.ProviderID, MapProviderError(err, "")
	}
	return resolved.ProviderID, nil
}
