package technique

import "sort"

// FewShotTemplateID selects the instruction used by a few-shot prompt.
type FewShotTemplateID string

const (
	TemplateCounting       FewShotTemplateID = "counting"
	TemplateIdentification FewShotTemplateID = "identification"
	TemplateClassification FewShotTemplateID = "classification"
)

// FewShotTemplate is a named analysis instruction.
type FewShotTemplate struct {
	ID          FewShotTemplateID `json:"id"`
	Name        string            `json:"name"`
	Instruction string            `json:"instruction"`
}

var fewShotTemplates = map[FewShotTemplateID]FewShotTemplate{
	TemplateCounting: {
		ID:          TemplateCounting,
		Name:        "Object Counting",
		Instruction: "Count the objects at the marked coordinates in each example image. Then apply the same counting method to identify and count similar objects in the target image.",
	},
	TemplateIdentification: {
		ID:          TemplateIdentification,
		Name:        "Object Identification",
		Instruction: "Identify the objects at the marked coordinates in each example image. Then apply the same identification pattern to locate and identify similar objects in the target image.",
	},
	TemplateClassification: {
		ID:          TemplateClassification,
		Name:        "Classification",
		Instruction: "Classify the patterns or objects at the marked coordinates in each example image. Then apply the same classification criteria to the target image.",
	},
}

// LookupFewShotTemplate returns the template registered under id.
func LookupFewShotTemplate(id FewShotTemplateID) (FewShotTemplate, bool) {
	tpl, ok := fewShotTemplates[id]
	return tpl, ok
}

// FewShotTemplates returns all few-shot templates sorted by id.
func FewShotTemplates() []FewShotTemplate {
	out := make([]FewShotTemplate, 0, len(fewShotTemplates))
	for _, tpl := range fewShotTemplates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Relationship describes how multi-image references relate to the target.
type Relationship string

const (
	RelationshipComparison Relationship = "comparison"
	RelationshipReference  Relationship = "reference"
	RelationshipExample    Relationship = "example"
	RelationshipContext    Relationship = "context"
)

var relationshipContexts = map[Relationship]string{
	RelationshipReference:  "Use the reference image(s) to understand what the target should be compared against. These show the expected or typical appearance.",
	RelationshipComparison: "Compare the reference image(s) with the target image. Identify similarities, differences, and notable variations.",
	RelationshipExample:    "The reference image(s) show typical examples. Use these to understand the pattern and apply the same analysis to the target image.",
	RelationshipContext:    "The reference image(s) provide contextual information. Use this context to better understand and analyze the target image.",
}

// StepPattern tags the reasoning role of a multi-step instruction.
type StepPattern string

const (
	PatternSequential   StepPattern = "sequential"
	PatternConditional  StepPattern = "conditional"
	PatternIterative    StepPattern = "iterative"
	PatternVerification StepPattern = "verification"
)

var reasoningPhrases = []string{
	"Think through this carefully and systematically.",
	"Show your reasoning for each step.",
	"Explain your thought process as you work through each step.",
}

const verificationInstruction = "Review your analysis from all previous steps and verify the accuracy of your conclusions. If you find any inconsistencies, correct them and explain the correction."

const coordinateSystemText = `COORDINATE SYSTEM:
- Coordinates are given as (X%, Y%) percentages from the top-left corner of each image
- (0%, 0%) = top-left corner
- (100%, 100%) = bottom-right corner
- For example, (50%, 50%) is the center of the image`
