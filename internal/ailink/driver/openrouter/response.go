package openrouter

import (
	"fmt"

	"github.com/visionforge/visionforge/internal/ailink/content"
	"github.com/visionforge/visionforge/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type responseMessage struct {
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}
	first := resp.Choices[0]
	out := &driver.Response{
		Content:      []content.ContentBlock{content.Text(first.Message.Content)},
		FinishReason: first.FinishReason,
		Model:        resp.Model,
	}
	if resp.Usage != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}
