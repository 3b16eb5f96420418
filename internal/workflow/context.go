package workflow

import (
	"encoding/json"
	"strings"

	"github.com/visionforge/visionforge/internal/response"
)

const summaryContextLength = 200

// SequenceContext returns the responses of the cards before index that have
// one, in card order.
func SequenceContext(cards []Card, results map[string]*response.Processed, index int) []*response.Processed {
	index = min(index, len(cards))
	var out []*response.Processed
	for _, c := range cards[:max(index, 0)] {
		if r, ok := results[c.ID]; ok && r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ContextFor extracts the part of resp passed to the next card. custom is
// returned as-is for ContextCustom.
func ContextFor(resp *response.Processed, mode ContextMode, custom string) string {
	if mode == ContextCustom {
		return custom
	}
	if resp == nil {
		return ""
	}
	switch mode {
	case ContextFull:
		return resp.Text
	case ContextSummary:
		if resp.Summary != "" {
			return resp.Summary
		}
		return truncateRunes(resp.Text, summaryContextLength)
	case ContextStructured:
		if resp.StructuredData != nil {
			if data, err := json.MarshalIndent(resp.StructuredData, "", "  "); err == nil {
				return string(data)
			}
		}
		return resp.Text
	default:
		if resp.Summary != "" {
			return resp.Summary
		}
		return resp.Text
	}
}

// WithContext prefixes prompt with context from an earlier analysis.
func WithContext(prompt, context string) string {
	if strings.TrimSpace(context) == "" {
		return prompt
	}
	return "Context from previous analysis:\n" + context + "\n\n" + prompt
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
