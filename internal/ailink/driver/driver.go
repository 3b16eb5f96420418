package driver

import (
	"context"

	"github.com/visionforge/visionforge/internal/ailink/content"
)

// Driver sends chat completions to one vision-capable provider.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "openrouter").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// KeyValidator is implemented by drivers that can check a credential without
// spending tokens.
type KeyValidator interface {
	ValidateKey(ctx context.Context) error
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsImages    bool
	SupportsStreaming bool
	MaxImages         int
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []content.Message
	Temperature *float64
	MaxTokens   *int
	Metadata    map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
	// Model is the model that served the request as reported by the provider.
	Model string
}

// Text returns the concatenated text content.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return content.JoinText(r.Content)
}

// ImageCount counts image blocks across messages.
func (r *Request) ImageCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, msg := range r.Messages {
		for _, block := range msg.Content {
			if block.Type == content.ContentTypeImage {
				n++
			}
		}
	}
	return n
}
