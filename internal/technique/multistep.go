package technique

import (
	"fmt"
	"strings"
)

const maxSteps = 10

// Step is one ordered instruction in a multi-step prompt.
type Step struct {
	Instruction string      `json:"instruction"`
	Pattern     StepPattern `json:"pattern,omitempty"`
}

// MultiStepConfig walks the model through ordered reasoning steps.
type MultiStepConfig struct {
	Steps   []Step `json:"steps"`
	ImageID string `json:"imageId,omitempty"`
	// SkipVerification disables the trailing verification step.
	SkipVerification bool `json:"skipVerification,omitempty"`
}

func (MultiStepConfig) Kind() Kind { return KindMultiStep }
func (MultiStepConfig) sealed()    {}

// Validate checks the step sequence.
func (c MultiStepConfig) Validate() ValidationResult {
	return ValidateSteps(c.Steps)
}

// ValidateSteps reports an empty sequence, too many steps, and every step
// whose instruction is blank (1-based).
func ValidateSteps(steps []Step) ValidationResult {
	var errs []string
	if len(steps) == 0 {
		errs = append(errs, "At least one step is required")
	}
	if len(steps) > maxSteps {
		errs = append(errs, "Too many steps (maximum 10 recommended for clarity)")
	}
	for i, step := range steps {
		if strings.TrimSpace(step.Instruction) == "" {
			errs = append(errs, fmt.Sprintf("Step %d missing instruction", i+1))
		}
	}
	return newResult(errs)
}

// BuildPrompt renders the steps, appending the verification step unless
// SkipVerification is set.
func (c MultiStepConfig) BuildPrompt() (string, error) {
	return c.Format(!c.SkipVerification)
}

// Format renders the steps behind the reasoning preamble. The receiver is
// never modified, so repeated calls produce the same prompt.
func (c MultiStepConfig) Format(includeVerification bool) (string, error) {
	if res := c.Validate(); !res.Valid {
		return "", invalid(KindMultiStep, res)
	}
	steps := c.Steps
	if includeVerification {
		steps = c.WithVerification().Steps
	}
	return strings.Join(reasoningPhrases, " ") + "\n\n" + FormatSteps(steps), nil
}

// WithVerification returns a copy of c whose steps end with the verification
// step. Configs that already carry a verification step are returned as is.
func (c MultiStepConfig) WithVerification() MultiStepConfig {
	if c.HasVerification() {
		return c
	}
	steps := make([]Step, len(c.Steps), len(c.Steps)+1)
	copy(steps, c.Steps)
	c.Steps = append(steps, VerificationStep())
	return c
}

// HasVerification reports whether any step is tagged as verification.
func (c MultiStepConfig) HasVerification() bool {
	for _, step := range c.Steps {
		if step.Pattern == PatternVerification {
			return true
		}
	}
	return false
}

// VerificationStep is the fixed self-review step.
func VerificationStep() Step {
	return Step{Instruction: verificationInstruction, Pattern: PatternVerification}
}

// FormatSteps renders "Step n: instruction" blocks separated by blank lines.
func FormatSteps(steps []Step) string {
	lines := make([]string, len(steps))
	for i, step := range steps {
		lines[i] = fmt.Sprintf("Step %d: %s", i+1, step.Instruction)
	}
	return strings.Join(lines, "\n\n")
}
