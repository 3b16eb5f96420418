package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/visionforge/visionforge/internal/ailink/driver"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultReferer and DefaultTitle identify the app to OpenRouter.
	DefaultReferer = "https://github.com/visionforge/visionforge"
	DefaultTitle   = "AI Image Analysis Workflow Builder"
)

// Client implements the OpenRouter chat-completions driver over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	Referer    string
	Title      string
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
		Referer: DefaultReferer,
		Title:   DefaultTitle,
	}
}

func (c *Client) Name() string {
	return "openrouter"
}

func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{SupportsImages: true}
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("openrouter client not configured")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	url := c.endpoint("/chat/completions")
	started := time.Now()
	status, respBody, err := c.do(ctx, http.MethodPost, url, body)
	entry := driver.TraceEntry{
		Driver:      c.Name(),
		Endpoint:    url,
		Method:      http.MethodPost,
		Model:       req.Model,
		Images:      req.ImageCount(),
		RequestBody: body,
		StatusCode:  status,
		DurationMs:  time.Since(started).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		c.Tracer.Record(entry)
		return nil, err
	}
	if json.Valid(respBody) {
		entry.Response = respBody
	}
	c.Tracer.Record(entry)

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &driver.ProviderError{Provider: c.Name(), StatusCode: status, Message: errorMessage(respBody), RawResponse: respBody}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return toDriverResponse(&parsed)
}

// ValidateKey lists models with the configured key. OpenRouter rejects
// unknown keys on this endpoint without charging.
func (c *Client) ValidateKey(ctx context.Context) error {
	if c == nil || c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}
	status, body, err := c.do(ctx, http.MethodGet, c.endpoint("/models"), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &driver.ProviderError{Provider: c.Name(), StatusCode: status, Message: errorMessage(body), RawResponse: body}
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.Referer)
	}
	if c.Title != "" {
		httpReq.Header.Set("X-Title", c.Title)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// errorMessage prefers the provider's {"error":{"message":...}} text.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
