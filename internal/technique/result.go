package technique

import "strings"

// ValidationResult is the itemized outcome of validating a technique config.
// Validators evaluate every rule, so Errors lists all violations at once.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidationError is returned by prompt builders when their input does not
// validate. It carries the full violation list.
type ValidationError struct {
	Kind       Kind
	Violations []string
}

func (e *ValidationError) Error() string {
	return "Invalid " + kindLabel(e.Kind) + " configuration: " + strings.Join(e.Violations, ", ")
}

func kindLabel(k Kind) string {
	switch k {
	case KindFewShot:
		return "few-shot"
	case KindMultiStep:
		return "multi-step"
	case KindMultiImage:
		return "multi-image"
	case KindVisualPointing:
		return "visual pointing"
	default:
		return string(k)
	}
}

func invalid(k Kind, res ValidationResult) error {
	return &ValidationError{Kind: k, Violations: append([]string(nil), res.Errors...)}
}
