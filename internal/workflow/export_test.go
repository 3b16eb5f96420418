package workflow

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/response"
)

func exportFixture() (*Workflow, *RunResult) {
	wf := &Workflow{Name: "Cars", Cards: []Card{standardCard("a", "Count the cars"), standardCard("b", "Which are red?")}}
	run := &RunResult{Results: []CardResult{{
		CardID:   "a",
		OK:       true,
		Response: response.Processed{Text: "Three cars.\nAll parked.", Confidence: response.ConfidenceHigh},
	}}}
	return wf, run
}

var exportTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestExportMarkdown(t *testing.T) {
	wf, run := exportFixture()
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, ExportMarkdown, wf, run, ExportOptions{IncludeResponses: true, Now: exportTime}))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "# Cars\n\nGenerated: 2026-03-04T05:06:07Z\n\n## Workflow Configuration\n\nTotal Cards: 2\n\n"))
	require.Contains(t, out, "### Card 1: STANDARD\n\n**Configuration:**\n\n```json\n{\n  \"prompt\": \"Count the cars\"\n}\n```\n\n")
	require.Contains(t, out, "**Response:**\n\nThree cars.\nAll parked.\n\n**Confidence:** high\n\n---\n\n")
	require.Equal(t, 1, strings.Count(out, "**Response:**"))
}

func TestExportCSV(t *testing.T) {
	wf, run := exportFixture()
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, ExportCSV, wf, run, ExportOptions{IncludeResponses: true}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Card Number", "Technique", "Configuration", "Response", "Confidence"}, rows[0])
	require.Equal(t, []string{"1", "standard", `{"prompt":"Count the cars"}`, "Three cars. All parked.", "high"}, rows[1])
	require.Equal(t, []string{"2", "standard", `{"prompt":"Which are red?"}`, "", ""}, rows[2])
}

func TestExportJSONWithoutResponses(t *testing.T) {
	wf, run := exportFixture()
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, ExportJSON, wf, run, ExportOptions{Now: exportTime}))

	var doc struct {
		Name  string `json:"name"`
		Cards []struct {
			ID        string          `json:"id"`
			Technique json.RawMessage `json:"technique"`
			Response  json.RawMessage `json:"response"`
		} `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "Cars", doc.Name)
	require.Len(t, doc.Cards, 2)
	require.JSONEq(t, `{"type":"standard","config":{"prompt":"Count the cars"}}`, string(doc.Cards[0].Technique))
	require.Equal(t, "null", string(doc.Cards[0].Response))
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("md")
	require.NoError(t, err)
	require.Equal(t, ExportMarkdown, f)
	require.Equal(t, "md", f.Extension())

	_, err = ParseExportFormat("pdf")
	require.Error(t, err)
}
