package technique

import "errors"

// ErrNoTargetImage reports a few-shot request whose images stop at the
// examples.
var ErrNoTargetImage = errors.New("few-shot analysis needs a target image after the example images")

// Config is the closed set of technique configurations. Only the types in
// this package implement it.
type Config interface {
	Kind() Kind
	Validate() ValidationResult
	BuildPrompt() (string, error)

	sealed()
}

var (
	_ Config = StandardConfig{}
	_ Config = FewShotConfig{}
	_ Config = MultiStepConfig{}
	_ Config = VisualPointingConfig{}
	_ Config = MultiImageConfig{}
)

// Build validates cfg and returns its prompt.
func Build(cfg Config) (string, error) {
	if cfg == nil {
		return "", &ValidationError{Kind: "technique", Violations: []string{"Technique is required"}}
	}
	return cfg.BuildPrompt()
}

// CheckTargetImage reports ErrNoTargetImage when cfg is few-shot and
// imageCount leaves no room for the target after the examples.
func CheckTargetImage(cfg Config, imageCount int) error {
	if c, ok := cfg.(FewShotConfig); ok && imageCount <= len(c.ExampleImages) {
		return ErrNoTargetImage
	}
	return nil
}

// Validate runs the validator for cfg.
func Validate(cfg Config) ValidationResult {
	if cfg == nil {
		return newResult([]string{"Technique is required"})
	}
	return cfg.Validate()
}

// ImageIDs returns the image references cfg consumes, in the order the images
// must be sent to the model. Techniques that don't name images return nil.
func ImageIDs(cfg Config) []string {
	switch c := cfg.(type) {
	case FewShotConfig:
		ids := make([]string, 0, len(c.ExampleImages)+1)
		for _, ex := range c.ExampleImages {
			ids = append(ids, ex.ID)
		}
		if c.TargetImageID != "" {
			ids = append(ids, c.TargetImageID)
		}
		return ids
	case MultiImageConfig:
		ids := append([]string(nil), c.ReferenceImageIDs...)
		if c.TargetImageID != "" {
			ids = append(ids, c.TargetImageID)
		}
		return ids
	case VisualPointingConfig:
		if c.ImageID == "" {
			return nil
		}
		return []string{c.ImageID}
	case MultiStepConfig:
		if c.ImageID == "" {
			return nil
		}
		return []string{c.ImageID}
	default:
		return nil
	}
}
