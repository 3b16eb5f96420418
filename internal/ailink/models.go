package ailink

import (
	"fmt"
	"sort"
	"strings"
)

// Model describes a vision model in the supported catalog.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxImages   int    `json:"max_images"`
	Cost        string `json:"cost"`
}

var supportedModels = map[string]Model{
	"openai/gpt-4o": {
		ID:          "openai/gpt-4o",
		Name:        "GPT-4o",
		Description: "Best for detailed object recognition",
		MaxImages:   10,
		Cost:        "medium",
	},
	"anthropic/claude-3.5-sonnet": {
		ID:          "anthropic/claude-3.5-sonnet",
		Name:        "Claude 3.5 Sonnet",
		Description: "Excellent vision + reasoning",
		MaxImages:   20,
		Cost:        "medium",
	},
	"google/gemini-pro-vision": {
		ID:          "google/gemini-pro-vision",
		Name:        "Gemini Pro Vision",
		Description: "Cost-effective alternative",
		MaxImages:   16,
		Cost:        "low",
	},
}

// SupportedModels returns the catalog sorted by id.
func SupportedModels() []Model {
	out := make([]Model, 0, len(supportedModels))
	for _, m := range supportedModels {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupModel returns the catalog entry for id. Provider prefixes are
// optional, so "gpt-4o" finds "openai/gpt-4o".
func LookupModel(id string) (Model, bool) {
	id = strings.TrimSpace(id)
	if m, ok := supportedModels[id]; ok {
		return m, true
	}
	for key, m := range supportedModels {
		if _, name, ok := strings.Cut(key, "/"); ok && name == id {
			return m, true
		}
	}
	return Model{}, false
}

// ValidateModelCapabilities checks imageCount against the model's limit.
// Models outside the catalog pass unless enforce is set.
func ValidateModelCapabilities(model string, imageCount int, enforce bool) error {
	m, ok := LookupModel(model)
	if !ok {
		if enforce {
			return fmt.Errorf("model %q is not in the supported catalog", model)
		}
		return nil
	}
	if imageCount > m.MaxImages {
		return fmt.Errorf("%s accepts at most %d images, got %d", m.Name, m.MaxImages, imageCount)
	}
	return nil
}
