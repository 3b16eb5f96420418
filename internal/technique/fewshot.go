package technique

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minExamples = 1
	maxExamples = 5
)

// Coordinate is a point in percent of image width and height, measured from
// the top-left corner. Values are not clamped.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ExampleImage is one annotated few-shot example.
type ExampleImage struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Coordinates []Coordinate `json:"coordinates"`
}

// FewShotConfig teaches the model from annotated examples before it analyzes
// a target image. The target is always the last image sent.
type FewShotConfig struct {
	ExampleImages    []ExampleImage    `json:"exampleImages"`
	SelectedTemplate FewShotTemplateID `json:"selectedTemplate"`
	TargetImageID    string            `json:"targetImageId,omitempty"`
}

func (FewShotConfig) Kind() Kind { return KindFewShot }
func (FewShotConfig) sealed()    {}

// Validate checks example count, template selection and example annotation.
func (c FewShotConfig) Validate() ValidationResult {
	var errs []string
	if len(c.ExampleImages) < minExamples {
		errs = append(errs, "Few-shot learning requires at least 1 example image")
	}
	if len(c.ExampleImages) > maxExamples {
		errs = append(errs, "Few-shot learning recommends maximum 5 examples for optimal performance")
	}
	template := strings.TrimSpace(string(c.SelectedTemplate))
	if template == "" {
		errs = append(errs, "Analysis template must be selected")
	} else if _, ok := fewShotTemplates[FewShotTemplateID(template)]; !ok {
		errs = append(errs, fmt.Sprintf("Unknown analysis template %q", template))
	}
	for i, ex := range c.ExampleImages {
		if len(ex.Coordinates) == 0 {
			errs = append(errs, fmt.Sprintf("Example %d has no marked coordinates", i+1))
		}
	}
	return newResult(errs)
}

// BuildPrompt renders the example blocks, the target block, the template
// instruction, the coordinate system and the task directive.
func (c FewShotConfig) BuildPrompt() (string, error) {
	if res := c.Validate(); !res.Valid {
		return "", invalid(KindFewShot, res)
	}
	tpl := fewShotTemplates[FewShotTemplateID(strings.TrimSpace(string(c.SelectedTemplate)))]

	examples := len(c.ExampleImages)
	target := examples + 1

	var b strings.Builder
	fmt.Fprintf(&b, "You will be shown %d images in sequence. The first %d image(s) are EXAMPLES with marked coordinates, and the final image (IMAGE %d) is the TARGET image to analyze.\n\n", target, examples, target)
	b.WriteString(FormatExamples(c.ExampleImages))
	fmt.Fprintf(&b, "\n\nIMAGE %d (TARGET):\nThis is the image you need to analyze. Apply what you learned from the example images.\n\n", target)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString(tpl.Instruction)
	b.WriteString("\n\n")
	b.WriteString(coordinateSystemText)
	b.WriteString("\n\nTASK:\n")
	fmt.Fprintf(&b, "1. First, carefully examine IMAGE(S) 1-%d to understand what objects/patterns are located at the marked coordinate positions\n", examples)
	fmt.Fprintf(&b, "2. Then, analyze IMAGE %d (the final image shown) to identify similar objects or patterns\n", target)
	fmt.Fprintf(&b, "3. Provide your analysis of IMAGE %d, identifying where similar objects/patterns appear\n\n", target)
	b.WriteString("Focus your analysis on the TARGET image (the last image). Use the example images only as reference for what to look for.")
	return b.String(), nil
}

// FormatCoordinate renders a coordinate as "(X%, Y%)" with one decimal place.
func FormatCoordinate(c Coordinate) string {
	return "(" + strconv.FormatFloat(c.X, 'f', 1, 64) + "%, " + strconv.FormatFloat(c.Y, 'f', 1, 64) + "%)"
}

// FormatCoordinates renders one indented bullet per coordinate.
func FormatCoordinates(coords []Coordinate) string {
	lines := make([]string, len(coords))
	for i, c := range coords {
		lines[i] = fmt.Sprintf("  - Point %d at %s measured from the top-left corner", i+1, FormatCoordinate(c))
	}
	return strings.Join(lines, "\n")
}

// FormatExamples renders the labeled block for each example image.
func FormatExamples(examples []ExampleImage) string {
	blocks := make([]string, len(examples))
	for i, ex := range examples {
		blocks[i] = fmt.Sprintf("IMAGE %d - \"%s\" (EXAMPLE):\nThis image shows example objects/patterns for you to learn from.\nThe objects of interest are located at these coordinate positions:\n%s",
			i+1, ex.Name, FormatCoordinates(ex.Coordinates))
	}
	return strings.Join(blocks, "\n\n")
}
