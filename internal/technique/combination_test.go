package technique

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func kinds(ks ...Kind) []Technique {
	out := make([]Technique, len(ks))
	for i, k := range ks {
		out[i] = Technique{Type: k}
	}
	return out
}

func TestCompatibilityTableIsSymmetric(t *testing.T) {
	for a, partners := range compatibility {
		for _, b := range partners {
			require.Truef(t, Compatible(b, a), "%s lists %s but not the reverse", a, b)
		}
	}
}

func TestValidateCombination(t *testing.T) {
	tests := []struct {
		name       string
		techniques []Technique
		compatible bool
		conflicts  []string
		warnings   []string
	}{
		{
			name:      "empty",
			conflicts: []string{"At least one technique is required"},
			warnings:  []string{},
		},
		{
			name:       "single",
			techniques: kinds(KindVisualPointing),
			compatible: true,
			conflicts:  []string{},
			warnings:   []string{},
		},
		{
			name:       "compatible pair",
			techniques: kinds(KindFewShot, KindMultiStep),
			compatible: true,
			conflicts:  []string{},
			warnings:   []string{},
		},
		{
			name:       "duplicate kinds",
			techniques: []Technique{New(StandardConfig{Prompt: "a"}), Technique{Type: KindFewShot}, Technique{Type: KindFewShot}},
			conflicts: []string{
				"Cannot use the same technique type multiple times",
				"fewShot and fewShot are not compatible",
			},
			warnings: []string{},
		},
		{
			name:       "few-shot with visual pointing",
			techniques: kinds(KindFewShot, KindVisualPointing),
			conflicts:  []string{"fewShot and visualPointing are not compatible"},
			warnings:   []string{"Combining few-shot with visual pointing may be complex; ensure examples also use markups"},
		},
		{
			name:       "few-shot with multi-image",
			techniques: kinds(KindFewShot, KindMultiImage),
			conflicts:  []string{"fewShot and multiImage are not compatible"},
			warnings:   []string{},
		},
		{
			name:       "multi-image with few-shot",
			techniques: kinds(KindMultiImage, KindFewShot),
			conflicts:  []string{"multiImage and fewShot are not compatible"},
			warnings:   []string{},
		},
		{
			name:       "more than three",
			techniques: kinds(KindMultiStep, KindStandard, KindMultiImage, KindVisualPointing),
			conflicts:  []string{"multiImage and visualPointing are not compatible"},
			warnings:   []string{"Combining more than 3 techniques may reduce effectiveness"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateCombination(tt.techniques)
			require.Equal(t, tt.compatible, res.Compatible)
			require.Equal(t, tt.conflicts, res.Conflicts)
			require.Equal(t, tt.warnings, res.Warnings)
		})
	}
}

func TestValidateCombinationDuplicateIgnoresConfigs(t *testing.T) {
	a := New(FewShotConfig{SelectedTemplate: TemplateCounting})
	b := New(FewShotConfig{SelectedTemplate: TemplateClassification})
	res := ValidateCombination([]Technique{a, b})
	require.False(t, res.Compatible)
	require.Contains(t, res.Conflicts, "Cannot use the same technique type multiple times")
}

func TestResolveConflictsKeepsFirstOccurrence(t *testing.T) {
	first := New(StandardConfig{Prompt: "first"})
	second := New(StandardConfig{Prompt: "second"})
	steps := New(MultiStepConfig{Steps: []Step{{Instruction: "x"}}})

	out := ResolveConflicts([]Technique{first, steps, second})
	require.Equal(t, []Technique{first, steps}, out)
	require.True(t, ValidateCombination(out).Compatible)
}

func TestResolveConflictsLeavesCrossKindConflicts(t *testing.T) {
	in := kinds(KindFewShot, KindVisualPointing, KindFewShot)
	out := ResolveConflicts(in)
	require.Equal(t, []Kind{KindFewShot, KindVisualPointing}, KindsOf(out))
	require.False(t, ValidateCombination(out).Compatible)
}

func TestResolveConflictsReturnsCompatibleInputUnchanged(t *testing.T) {
	in := kinds(KindStandard, KindMultiStep)
	require.Equal(t, in, ResolveConflicts(in))
}

func TestOrderForApplication(t *testing.T) {
	out := OrderForApplication(kinds(KindStandard, KindFewShot, KindMultiStep))
	require.Equal(t, []Kind{KindFewShot, KindMultiStep, KindStandard}, KindsOf(out))

	all := OrderForApplication(kinds(KindStandard, KindMultiStep, KindVisualPointing, KindMultiImage, KindFewShot))
	require.Equal(t, Kinds, KindsOf(all))
}

func TestOrderForApplicationIsStable(t *testing.T) {
	a := New(StandardConfig{Prompt: "a"})
	b := New(StandardConfig{Prompt: "b"})
	few := Technique{Type: KindFewShot}

	out := OrderForApplication([]Technique{a, few, b})
	require.Equal(t, []Technique{few, a, b}, out)
}

func TestMergeConfigs(t *testing.T) {
	merged := MergeConfigs([]Technique{
		New(StandardConfig{Prompt: "old"}),
		New(MultiStepConfig{Steps: []Step{{Instruction: "x"}}}),
		New(StandardConfig{Prompt: "new"}),
	})
	require.Equal(t, []Kind{KindStandard, KindMultiStep, KindStandard}, merged.Techniques)
	require.Equal(t, StandardConfig{Prompt: "new"}, merged.Configs[KindStandard])
}

func TestBuildCombinedPrompt(t *testing.T) {
	steps := MultiStepConfig{Steps: []Step{{Instruction: "Locate each bolt"}}, SkipVerification: true}
	prompt, err := BuildCombinedPrompt([]Technique{
		New(StandardConfig{Prompt: "Report the bolt count."}),
		New(steps),
	})
	require.NoError(t, err)

	stepsPrompt, err := steps.BuildPrompt()
	require.NoError(t, err)
	require.Equal(t, stepsPrompt+"\n\nReport the bolt count.", prompt)
}

func TestBuildCombinedPromptRejectsConflicts(t *testing.T) {
	_, err := BuildCombinedPrompt(kinds(KindFewShot, KindMultiImage, KindVisualPointing))
	var cerr *CombinationError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "Incompatible technique combination: fewShot and multiImage are not compatible, fewShot and visualPointing are not compatible, multiImage and visualPointing are not compatible", err.Error())
}

func TestBuildCombinedPromptRequiresConfigs(t *testing.T) {
	_, err := BuildCombinedPrompt(kinds(KindStandard))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestBuildCombinedPromptPropagatesValidation(t *testing.T) {
	_, err := BuildCombinedPrompt([]Technique{New(StandardConfig{}), New(MultiStepConfig{})})
	require.EqualError(t, err, "Invalid multi-step configuration: At least one step is required")
}
