package response

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractStructuredData(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{"json fence", "```json\n{\"a\":1}\n```", map[string]any{"a": float64(1)}},
		{"malformed json fence", "```json\n{\"a\":\n```", nil},
		{"plain fence array", "Result:\n```\n[1, 2]\n```", []any{float64(1), float64(2)}},
		{"bare object", `The answer is {"count": 3} as shown.`, map[string]any{"count": float64(3)}},
		{"no json", "There are three cats.", nil},
		{
			name: "falls through a malformed fence",
			text: "```json\nnot json\n```\nAlso {\"ok\": true}",
			want: map[string]any{"ok": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractStructuredData(tt.text))
		})
	}
}

func TestExtractCodeBlocks(t *testing.T) {
	text := "Intro line\n```python\nprint(1)\nprint(2)\n```\nmiddle\n```\nplain\n```"
	blocks := ExtractCodeBlocks(text)
	require.Equal(t, []CodeBlock{
		{Language: "python", Code: "print(1)\nprint(2)", StartLine: 2, EndLine: 3},
		{Language: "text", Code: "plain", StartLine: 7, EndLine: 7},
	}, blocks)

	require.Empty(t, ExtractCodeBlocks("no fences"))
}

func TestFormatCodeBlocksHTML(t *testing.T) {
	out := FormatCodeBlocksHTML("See:\n```go\nif a < b {}\n```")
	require.Equal(t, "See:\n<pre class=\"code-block\" data-language=\"go\"><code>if a &lt; b {}</code></pre>", out)
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		text string
		want Confidence
	}{
		{"I am very confident this is correct", ConfidenceHigh},
		{"it might possibly be a cat", ConfidenceLow},
		{"I am uncertain about the count", ConfidenceLow},
		{"This is probably a crack", ConfidenceMedium},
		{"It seems to be rusted", ConfidenceMedium},
		{"There are four bolts", ConfidenceUnknown},
		{"DEFINITELY a dog", ConfidenceHigh},
		{"I am certainly right about the count", ConfidenceHigh},
		{"With high certainty there are four bolts", ConfidenceHigh},
		{"There is some uncertainty in the count", ConfidenceLow},
		{"The outcome is uncertain", ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.want, ParseConfidence(tt.text))
		})
	}
}

func TestGenerateSummary(t *testing.T) {
	require.Equal(t, "", GenerateSummary("   "))
	require.Equal(t, "One. Two!", GenerateSummary("  One. Two!  "))
	require.Equal(t, "First point. Second point.", GenerateSummary("First point. Second point! Third point?"))
}

func TestExtractKeyFindings(t *testing.T) {
	text := "Findings:\n1. numbered one\n- bullet one\n* bullet two\n2. numbered two\n• bullet three\n3. numbered three"
	require.Equal(t, []string{
		"bullet one", "bullet two", "bullet three", "numbered one", "numbered two",
	}, ExtractKeyFindings(text))
}

func TestExtractKeyFindingsFallsBackToSentences(t *testing.T) {
	text := "Short one. This sentence is long enough to count. Tiny. Another sentence that is long enough. A third sentence that is long enough. A fourth sentence that is long enough."
	require.Equal(t, []string{
		"This sentence is long enough to count",
		"Another sentence that is long enough",
		"A third sentence that is long enough",
	}, ExtractKeyFindings(text))
}

func TestExtractKeyFindingsCountsCharacters(t *testing.T) {
	text := "Äpfel über Öl äöü. This sentence is long enough to count."
	require.Equal(t, []string{"This sentence is long enough to count"}, ExtractKeyFindings(text))
}

func TestProcess(t *testing.T) {
	raw := "\n  I am very confident.\n```json\n{\"total_count\": 4}\n```\n- four bolts\n"
	got := Process(raw)
	require.Equal(t, "I am very confident.\n```json\n{\"total_count\": 4}\n```\n- four bolts", got.Text)
	require.Equal(t, map[string]any{"total_count": float64(4)}, got.StructuredData)
	require.Len(t, got.CodeBlocks, 1)
	require.Equal(t, 2, got.CodeBlocks[0].StartLine)
	require.Equal(t, ConfidenceHigh, got.Confidence)
	require.Equal(t, []string{"four bolts"}, got.KeyFindings)
}

func TestErrorResponse(t *testing.T) {
	got := ErrorResponse(errors.New("gateway down"))
	require.Equal(t, "Error: gateway down", got.Text)
	require.Equal(t, ConfidenceUnknown, got.Confidence)
	require.Equal(t, "Response processing failed", got.Summary)
	require.Nil(t, got.StructuredData)
}

func TestValidateFormat(t *testing.T) {
	require.True(t, ValidateFormat("anything", FormatAny))
	require.True(t, ValidateFormat(`{"a": 1}`, FormatJSON))
	require.False(t, ValidateFormat("plain", FormatJSON))
	require.True(t, ValidateFormat("```sh\nls\n```", FormatStructured))
	require.False(t, ValidateFormat("", FormatText))
}
