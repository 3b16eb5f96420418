package technique

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func example(id string, coords ...Coordinate) ExampleImage {
	return ExampleImage{ID: id, Name: id + ".png", Coordinates: coords}
}

func TestFewShotValidateNoExamples(t *testing.T) {
	res := FewShotConfig{SelectedTemplate: TemplateCounting}.Validate()
	require.False(t, res.Valid)
	require.Equal(t, []string{"Few-shot learning requires at least 1 example image"}, res.Errors)
}

func TestFewShotValidateReportsEveryViolation(t *testing.T) {
	cfg := FewShotConfig{ExampleImages: []ExampleImage{
		example("a"), example("b"), example("c"), example("d"), example("e"), example("f", Coordinate{X: 1, Y: 1}),
	}}
	res := cfg.Validate()
	require.False(t, res.Valid)
	require.Equal(t, []string{
		"Few-shot learning recommends maximum 5 examples for optimal performance",
		"Analysis template must be selected",
		"Example 1 has no marked coordinates",
		"Example 2 has no marked coordinates",
		"Example 3 has no marked coordinates",
		"Example 4 has no marked coordinates",
		"Example 5 has no marked coordinates",
	}, res.Errors)
}

func TestFewShotValidateUnknownTemplate(t *testing.T) {
	cfg := FewShotConfig{
		ExampleImages:    []ExampleImage{example("a", Coordinate{X: 1, Y: 2})},
		SelectedTemplate: "segmentation",
	}
	res := cfg.Validate()
	require.False(t, res.Valid)
	require.Equal(t, []string{`Unknown analysis template "segmentation"`}, res.Errors)
}

func TestFormatCoordinateRoundsToOneDecimal(t *testing.T) {
	require.Equal(t, "(33.3%, 66.7%)", FormatCoordinate(Coordinate{X: 33.333, Y: 66.666}))
	require.Equal(t, "(0.0%, 100.0%)", FormatCoordinate(Coordinate{X: 0, Y: 100}))
}

func TestFormatCoordinatesBullets(t *testing.T) {
	out := FormatCoordinates([]Coordinate{{X: 10, Y: 20}, {X: 55.55, Y: 1.04}})
	require.Equal(t,
		"  - Point 1 at (10.0%, 20.0%) measured from the top-left corner\n"+
			"  - Point 2 at (55.5%, 1.0%) measured from the top-left corner",
		out)
}

func TestFewShotBuildPromptCountingScenario(t *testing.T) {
	cfg := FewShotConfig{
		ExampleImages: []ExampleImage{
			example("first", Coordinate{X: 25, Y: 25}),
			example("second", Coordinate{X: 75, Y: 50}),
		},
		SelectedTemplate: TemplateCounting,
	}
	require.True(t, cfg.Validate().Valid)

	prompt, err := cfg.BuildPrompt()
	require.NoError(t, err)
	require.Contains(t, prompt, "IMAGE 1")
	require.Contains(t, prompt, "IMAGE 2")
	require.Contains(t, prompt, "IMAGE 3 (TARGET)")
	require.Contains(t, prompt, fewShotTemplates[TemplateCounting].Instruction)
	require.True(t, strings.HasPrefix(prompt, "You will be shown 3 images in sequence. The first 2 image(s) are EXAMPLES"))
	require.Contains(t, prompt, `IMAGE 1 - "first.png" (EXAMPLE):`)
	require.Contains(t, prompt, "1. First, carefully examine IMAGE(S) 1-2 to understand")
	require.Contains(t, prompt, coordinateSystemText)
	require.True(t, strings.HasSuffix(prompt, "Use the example images only as reference for what to look for."))
}

func TestFewShotBuildPromptTargetIsAlwaysLast(t *testing.T) {
	for n := 1; n <= maxExamples; n++ {
		t.Run(fmt.Sprintf("%d examples", n), func(t *testing.T) {
			cfg := FewShotConfig{SelectedTemplate: TemplateIdentification}
			for i := 0; i < n; i++ {
				cfg.ExampleImages = append(cfg.ExampleImages, example(fmt.Sprintf("ex%d", i), Coordinate{X: 50, Y: 50}))
			}
			prompt, err := cfg.BuildPrompt()
			require.NoError(t, err)
			require.Equal(t, n, strings.Count(prompt, "(EXAMPLE):"))
			require.Equal(t, 1, strings.Count(prompt, "(TARGET):"))

			target := fmt.Sprintf("IMAGE %d (TARGET):", n+1)
			lastExample := fmt.Sprintf("IMAGE %d - ", n)
			require.Greater(t, strings.Index(prompt, target), strings.Index(prompt, lastExample))
		})
	}
}

func TestFewShotBuildPromptRejectsInvalid(t *testing.T) {
	_, err := FewShotConfig{}.BuildPrompt()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, KindFewShot, verr.Kind)
	require.Equal(t, "Invalid few-shot configuration: Few-shot learning requires at least 1 example image, Analysis template must be selected", err.Error())
}
