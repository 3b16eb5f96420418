package technique

import "strings"

// StandardConfig is a plain prompt with no technique-specific framing.
type StandardConfig struct {
	Prompt string `json:"prompt"`
}

func (StandardConfig) Kind() Kind { return KindStandard }
func (StandardConfig) sealed()    {}

func (c StandardConfig) Validate() ValidationResult {
	if strings.TrimSpace(c.Prompt) == "" {
		return newResult([]string{"Prompt is required"})
	}
	return newResult(nil)
}

func (c StandardConfig) BuildPrompt() (string, error) {
	if res := c.Validate(); !res.Valid {
		return "", invalid(KindStandard, res)
	}
	return strings.TrimSpace(c.Prompt), nil
}
