package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/technique"
)

func TestBuiltinTemplates(t *testing.T) {
	reg, err := BuiltinTemplates()
	require.NoError(t, err)

	all := reg.List("")
	ids := make([]string, len(all))
	for i, tmpl := range all {
		ids[i] = tmpl.ID
	}
	require.Equal(t, []string{
		"comparative-analysis",
		"comprehensive-evaluation",
		"detailed-inspection",
		"object-counting",
		"pattern-recognition",
		"reference-based-analysis",
	}, ids)

	require.Len(t, reg.List(CategoryAnalysis), 3)
	require.Len(t, reg.List("all"), 6)
	require.Empty(t, reg.List("cooking"))

	_, err = reg.Get("missing")
	require.EqualError(t, err, `template "missing" not found`)
}

func TestTemplateInstantiateUsesFreshIDs(t *testing.T) {
	reg, err := BuiltinTemplates()
	require.NoError(t, err)
	tmpl, err := reg.Get("object-counting")
	require.NoError(t, err)

	first, err := tmpl.Instantiate("")
	require.NoError(t, err)
	second, err := tmpl.Instantiate("Parking lot")
	require.NoError(t, err)

	require.Equal(t, "Object Counting Workflow", first.Name)
	require.Equal(t, "Parking lot", second.Name)
	require.Len(t, first.Cards, 2)
	require.NotEqual(t, first.Cards[0].ID, second.Cards[0].ID)

	fewShot, ok := first.Cards[0].Technique.Config.(technique.FewShotConfig)
	require.True(t, ok)
	require.Equal(t, technique.TemplateCounting, fewShot.SelectedTemplate)

	steps, ok := first.Cards[1].Technique.Config.(technique.MultiStepConfig)
	require.True(t, ok)
	require.Len(t, steps.Steps, 5)
	require.Equal(t, ContextSummary, first.Cards[1].Context.Mode)

	steps.Steps[0].Instruction = "changed"
	again, err := tmpl.Instantiate("")
	require.NoError(t, err)
	require.Equal(t, "First, identify all [objects] visible in the image",
		again.Cards[1].Technique.Config.(technique.MultiStepConfig).Steps[0].Instruction)
}

func TestNewTemplateRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewTemplateRegistry([]*Template{{ID: "a"}, {ID: "a"}})
	require.EqualError(t, err, "duplicate template id: a")
}
