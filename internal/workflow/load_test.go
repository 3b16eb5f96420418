package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/technique"
)

const workflowYAML = `
name: Street survey
cards:
  - title: Mark the cars
    technique:
      type: visual-pointing
      config:
        imageId: street
        prompt: What is inside the marked areas?
        markups:
          - type: circle
            x: 120
            y: 80
            radius: 40
            color: red
          - type: text
            x: 10
            y: 10
            text: A
            color: blue
  - title: Count them
    context:
      mode: summary
    images: [street]
    technique:
      type: standard
      config:
        prompt: How many cars are there?
`

func TestLoadWorkflowYAML(t *testing.T) {
	wf, err := Load("survey.yaml", []byte(workflowYAML))
	require.NoError(t, err)
	require.Equal(t, "Street survey", wf.Name)
	require.NotEmpty(t, wf.ID)
	require.Len(t, wf.Cards, 2)
	require.NotEmpty(t, wf.Cards[0].ID)

	vp, ok := wf.Cards[0].Technique.Config.(technique.VisualPointingConfig)
	require.True(t, ok)
	require.Len(t, vp.Markups, 2)
	require.Equal(t, technique.Circle{X: 120, Y: 80, Radius: 40, Color: "red"}, vp.Markups[0])
	require.Equal(t, []string{"street"}, wf.Cards[0].ImageIDs())

	require.Equal(t, ContextSummary, wf.Cards[1].Context.Mode)
	require.Equal(t, []string{"street"}, wf.Cards[1].ImageIDs())
}

func TestLoadSingleCard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.yaml")
	require.NoError(t, os.WriteFile(path, []byte("technique:\n  type: standard\n  config:\n    prompt: Describe\n"), 0o600))

	wf, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "card", wf.Name)
	require.Len(t, wf.Cards, 1)
	require.Equal(t, technique.KindStandard, wf.Cards[0].Technique.Kind())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("empty.yaml", nil)
	require.Error(t, err)

	_, err = Load("list.yaml", []byte("- a\n- b\n"))
	require.ErrorContains(t, err, "expected a mapping")

	_, err = Load("bad.yaml", []byte("technique:\n  type: telepathy\n"))
	require.Error(t, err)
}

func TestLoadTechniques(t *testing.T) {
	list, err := LoadTechniques("combo.yaml", []byte("techniques:\n  - type: fewShot\n  - type: multi_step\n"))
	require.NoError(t, err)
	require.Equal(t, []technique.Kind{technique.KindFewShot, technique.KindMultiStep}, technique.KindsOf(list))

	list, err = LoadTechniques("combo.json", []byte(`[{"type":"standard"}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].Config)
}

func TestMarshalYAMLRoundTripsTechniques(t *testing.T) {
	wf, err := Load("survey.yaml", []byte(workflowYAML))
	require.NoError(t, err)

	out, err := MarshalYAML(wf)
	require.NoError(t, err)

	again, err := Load("again.yaml", out)
	require.NoError(t, err)
	require.Equal(t, wf.Cards[0].Technique, again.Cards[0].Technique)
	require.Equal(t, wf.ID, again.ID)
}
