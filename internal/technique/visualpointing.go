package technique

import (
	"fmt"
	"strings"
)

// VisualPointingConfig directs the model to regions marked on one image.
type VisualPointingConfig struct {
	ImageID string  `json:"imageId"`
	Markups Markups `json:"markups"`
	Prompt  string  `json:"prompt"`
}

func (VisualPointingConfig) Kind() Kind { return KindVisualPointing }
func (VisualPointingConfig) sealed()    {}

// Validate checks the image, markups and prompt.
func (c VisualPointingConfig) Validate() ValidationResult {
	var errs []string
	if strings.TrimSpace(c.ImageID) == "" {
		errs = append(errs, "Image is required for visual pointing")
	}
	if len(c.Markups) == 0 {
		errs = append(errs, "At least one markup is required for visual pointing")
	}
	for i, m := range c.Markups {
		if m == nil {
			errs = append(errs, fmt.Sprintf("Markup %d is empty", i+1))
		}
	}
	if strings.TrimSpace(c.Prompt) == "" {
		errs = append(errs, "Prompt is required for visual pointing")
	}
	return newResult(errs)
}

// BuildPrompt lists every markup as a numbered region ahead of the prompt.
func (c VisualPointingConfig) BuildPrompt() (string, error) {
	if res := c.Validate(); !res.Valid {
		return "", invalid(KindVisualPointing, res)
	}
	return "The image has been marked with the following regions of interest:\n\n" +
		DescribeRegions(c.Markups) +
		"\n\nPlease focus your analysis on these marked regions.\n\n" +
		c.Prompt, nil
}

// DescribeRegions renders "Region n: ..." lines in markup order. Nil
// entries are skipped.
func DescribeRegions(markups []Markup) string {
	lines := make([]string, 0, len(markups))
	for _, m := range markups {
		if m == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("Region %d: %s", len(lines)+1, m.Describe()))
	}
	return strings.Join(lines, "\n")
}
