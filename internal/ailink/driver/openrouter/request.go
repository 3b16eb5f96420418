package openrouter

import (
	"fmt"
	"strings"

	"github.com/visionforge/visionforge/internal/ailink/content"
	"github.com/visionforge/visionforge/internal/ailink/driver"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	return &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, nil
}

func convertMessages(messages []content.Message) ([]chatMessage, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}
	result := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		value, err := convertContent(msg.Content)
		if err != nil {
			return nil, err
		}
		result = append(result, chatMessage{Role: msg.Role, Content: value})
	}
	return result, nil
}

// convertContent sends a lone text block as a plain string and anything else
// as an array of typed parts.
func convertContent(blocks []content.ContentBlock) (any, error) {
	if len(blocks) == 0 {
		return "", nil
	}
	if len(blocks) == 1 && blocks[0].Type == content.ContentTypeText {
		return blocks[0].Text, nil
	}
	parts := make([]contentPart, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case content.ContentTypeText:
			parts = append(parts, contentPart{Type: "text", Text: block.Text})
		case content.ContentTypeImage:
			if strings.TrimSpace(block.URL) == "" {
				return nil, fmt.Errorf("image block has no url")
			}
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: block.URL}})
		default:
			return nil, fmt.Errorf("unsupported content type: %s", block.Type)
		}
	}
	return parts, nil
}
