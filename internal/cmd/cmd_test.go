package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/imageset"
)

const standardCard = `
title: Describe
technique:
  type: standard
  config:
    prompt: Describe the scene
`

const twoCardWorkflow = `
name: Mixed
cards:
  - title: Good
    technique:
      type: standard
      config:
        prompt: Count the apples
  - title: Empty
    technique:
      type: standard
      config:
        prompt: ""
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{name: "gateway", err: fmt.Errorf("card 1: %w", &ailink.GatewayError{Code: ailink.CodeRateLimit, Message: "slow down"}), want: foundry.ExitExternalServiceUnavailable},
		{name: "missing file", err: fmt.Errorf("read x: %w", fs.ErrNotExist), want: foundry.ExitFileNotFound},
		{name: "other", err: fmt.Errorf("boom"), want: foundry.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestReadInput(t *testing.T) {
	c := &cobra.Command{}
	c.SetIn(strings.NewReader("from stdin"))

	data, err := readInput(c, "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(data))

	path := writeFile(t, "in.txt", "from file")
	data, err = readInput(c, path)
	require.NoError(t, err)
	assert.Equal(t, "from file", string(data))

	_, err = readInput(c, "")
	require.ErrorContains(t, err, "-f")

	_, err = readInput(c, filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid card", func(t *testing.T) {
		out, err := execute(t, "", "validate", "-f", writeFile(t, "card.yaml", standardCard), "-o", "json")
		require.NoError(t, err)

		var results []cardValidation
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		assert.True(t, results[0].Result.Valid)
	})

	t.Run("one invalid card", func(t *testing.T) {
		out, err := execute(t, "", "validate", "-f", writeFile(t, "wf.yaml", twoCardWorkflow), "-o", "json")
		require.ErrorContains(t, err, "1 of 2 card(s) failed validation")
		assert.Contains(t, out, "Prompt is required")
	})

	t.Run("stdin", func(t *testing.T) {
		_, err := execute(t, standardCard, "validate", "-f", "-", "-o", "table")
		require.NoError(t, err)
	})
}

func TestBuildCommand(t *testing.T) {
	out, err := execute(t, "", "build", "-f", writeFile(t, "card.yaml", standardCard), "--structured=false")
	require.NoError(t, err)
	assert.Equal(t, "Describe the scene\n", out)

	out, err = execute(t, "", "build", "-f", writeFile(t, "card.yaml", standardCard), "--structured")
	require.NoError(t, err)
	assert.Contains(t, out, "Describe the scene")
	assert.Contains(t, out, "JSON")

	_, err = execute(t, "", "build", "-f", writeFile(t, "wf.yaml", twoCardWorkflow), "--structured=false")
	require.ErrorContains(t, err, "Empty")
}

func TestComboCommands(t *testing.T) {
	compatible := writeFile(t, "ok.yaml", "techniques:\n  - type: fewShot\n  - type: multiStep\n")
	clashing := writeFile(t, "bad.yaml", "techniques:\n  - type: fewShot\n  - type: visualPointing\n")
	repeated := writeFile(t, "dup.yaml", "techniques:\n  - type: standard\n  - type: standard\n")

	_, err := execute(t, "", "combo", "validate", "-f", compatible, "-o", "json")
	require.NoError(t, err)

	out, err := execute(t, "", "combo", "validate", "-f", clashing, "-o", "json")
	require.ErrorContains(t, err, "incompatible combination")
	assert.Contains(t, out, `"compatible": false`)

	out, err = execute(t, "", "combo", "resolve", "-f", repeated, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, `"standard"`))

	out, err = execute(t, "", "combo", "order", "-f", writeFile(t, "order.yaml", "techniques:\n  - type: multiStep\n  - type: fewShot\n"), "-o", "json")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "fewShot"), strings.Index(out, "multiStep"))
}

func TestProcessCommand(t *testing.T) {
	response := "Summary line.\n```json\n{\"count\": 3}\n```\nI am confident there are 3 apples."

	out, err := execute(t, response, "process", "-f", "-", "-o", "json", "--format", "", "--html=false")
	require.NoError(t, err)
	assert.Contains(t, out, `"count"`)

	_, err = execute(t, "not json at all", "process", "-f", "-", "-o", "json", "--format", "json", "--html=false")
	require.ErrorContains(t, err, "not valid json")

	_, err = execute(t, "text", "process", "-f", "-", "-o", "json", "--format", "yaml", "--html=false")
	require.ErrorContains(t, err, "unsupported --format")
}

func TestTemplatesAndModelsCommands(t *testing.T) {
	out, err := execute(t, "", "templates", "list", "--category", "counting", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "object-counting")

	out, err = execute(t, "", "templates", "show", "object-counting", "--instantiate", "Shelf count", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Shelf count")
	assert.Contains(t, out, "cards:")

	_, err = execute(t, "", "templates", "show", "no-such-template", "-o", "table")
	require.Error(t, err)

	out, err = execute(t, "", "models", "-o", "json")
	require.NoError(t, err)
	for _, m := range ailink.SupportedModels() {
		assert.Contains(t, out, m.ID)
	}
}

func TestImagePrepCommand(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 6), G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	in := writeFile(t, "in.png", buf.String())
	out := filepath.Join(t.TempDir(), "out.jpg")

	rendered, err := execute(t, "", "image", "prep", "--in", in, "--out", out, "--max-dimension", "10", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, rendered, `"resized": true`)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	mimeType, err := imageset.DetectType(data)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	decoded, err := imageset.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 10, decoded.Bounds().Dx())
	assert.Equal(t, 5, decoded.Bounds().Dy())
}
