package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/visionforge/visionforge/internal/ailink/content"
	"github.com/visionforge/visionforge/internal/ailink/driver"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the driver for OpenAI and OpenAI-compatible endpoints
// through the go-openai SDK.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tracer     *driver.Tracer
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURL
	}
	return &Client{
		BaseURL: url,
		APIKey:  strings.TrimSpace(apiKey),
	}
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{SupportsImages: true}
}

func (c *Client) sdk() *goopenai.Client {
	cfg := goopenai.DefaultConfig(c.APIKey)
	cfg.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}
	return goopenai.NewClientWithConfig(cfg)
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	chatReq, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := c.sdk().CreateChatCompletion(ctx, chatReq)
	entry := driver.TraceEntry{
		Driver:     c.Name(),
		Endpoint:   strings.TrimRight(c.BaseURL, "/") + "/chat/completions",
		Method:     http.MethodPost,
		Model:      req.Model,
		Images:     req.ImageCount(),
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		c.Tracer.Record(entry)
		return nil, c.providerError(err)
	}
	entry.StatusCode = http.StatusOK
	c.Tracer.Record(entry)

	return toDriverResponse(resp)
}

// ValidateKey lists models with the configured key.
func (c *Client) ValidateKey(ctx context.Context) error {
	if c == nil || c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if _, err := c.sdk().ListModels(ctx); err != nil {
		return c.providerError(err)
	}
	return nil
}

// providerError converts SDK status errors into driver.ProviderError so the
// gateway can classify them. Transport errors pass through unchanged.
func (c *Client) providerError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &driver.ProviderError{Provider: c.Name(), StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &driver.ProviderError{Provider: c.Name(), StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("request failed: %w", err)
}

func buildChatRequest(req *driver.Request) (goopenai.ChatCompletionRequest, error) {
	if req == nil {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("messages are required")
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return goopenai.ChatCompletionRequest{}, err
		}
		messages = append(messages, converted)
	}

	out := goopenai.ChatCompletionRequest{Model: req.Model, Messages: messages}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	return out, nil
}

func convertMessage(msg content.Message) (goopenai.ChatCompletionMessage, error) {
	if len(msg.Content) == 1 && msg.Content[0].Type == content.ContentTypeText {
		return goopenai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content[0].Text}, nil
	}
	parts := make([]goopenai.ChatMessagePart, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case content.ContentTypeText:
			parts = append(parts, goopenai.ChatMessagePart{Type: goopenai.ChatMessagePartTypeText, Text: block.Text})
		case content.ContentTypeImage:
			if strings.TrimSpace(block.URL) == "" {
				return goopenai.ChatCompletionMessage{}, fmt.Errorf("image block has no url")
			}
			parts = append(parts, goopenai.ChatMessagePart{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: block.URL, Detail: goopenai.ImageURLDetailAuto},
			})
		default:
			return goopenai.ChatCompletionMessage{}, fmt.Errorf("unsupported content type: %s", block.Type)
		}
	}
	return goopenai.ChatCompletionMessage{Role: msg.Role, MultiContent: parts}, nil
}

func toDriverResponse(resp goopenai.ChatCompletionResponse) (*driver.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}
	first := resp.Choices[0]
	return &driver.Response{
		Content:      []content.ContentBlock{content.Text(first.Message.Content)},
		FinishReason: string(first.FinishReason),
		Model:        resp.Model,
		Usage: &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
