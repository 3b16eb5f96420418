package workflow

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/visionforge/visionforge/internal/response"
)

// ExportFormat names an export encoding.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "markdown"
	ExportCSV      ExportFormat = "csv"
)

// ParseExportFormat accepts json, markdown (or md) and csv.
func ParseExportFormat(value string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "json", "":
		return ExportJSON, nil
	case "markdown", "md":
		return ExportMarkdown, nil
	case "csv":
		return ExportCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use json, markdown or csv)", value)
	}
}

// Extension returns the file extension for the format.
func (f ExportFormat) Extension() string {
	if f == ExportMarkdown {
		return "md"
	}
	return string(f)
}

// ExportOptions controls what is exported.
type ExportOptions struct {
	IncludeResponses bool
	// Now stamps the export; zero means time.Now.
	Now time.Time
}

// ExportCard is a card with its response, if any.
type ExportCard struct {
	Card
	Response *response.Processed `json:"response"`
}

// ExportData is the document written by Export.
type ExportData struct {
	Name      string       `json:"name"`
	Cards     []ExportCard `json:"cards"`
	CreatedAt string       `json:"createdAt"`
}

// NewExportData pairs the cards of wf with their responses from run. run may
// be nil.
func NewExportData(wf *Workflow, run *RunResult, opts ExportOptions) ExportData {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	byCard := map[string]response.Processed{}
	if run != nil && opts.IncludeResponses {
		for _, res := range run.Results {
			byCard[res.CardID] = res.Response
		}
	}
	data := ExportData{Name: wf.Name, Cards: make([]ExportCard, 0, len(wf.Cards)), CreatedAt: now.Format(time.RFC3339)}
	for _, c := range wf.Cards {
		ec := ExportCard{Card: c}
		if resp, ok := byCard[c.ID]; ok {
			ec.Response = &resp
		}
		data.Cards = append(data.Cards, ec)
	}
	return data
}

// Export writes wf and the responses of run in format.
func Export(w io.Writer, format ExportFormat, wf *Workflow, run *RunResult, opts ExportOptions) error {
	if wf == nil {
		return fmt.Errorf("workflow is required")
	}
	data := NewExportData(wf, run, opts)
	switch format {
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case ExportMarkdown:
		_, err := io.WriteString(w, renderMarkdown(data))
		return err
	case ExportCSV:
		return writeCSV(w, data)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func renderMarkdown(data ExportData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", data.Name)
	fmt.Fprintf(&b, "Generated: %s\n\n", data.CreatedAt)
	b.WriteString("## Workflow Configuration\n\n")
	fmt.Fprintf(&b, "Total Cards: %d\n\n", len(data.Cards))

	for i, card := range data.Cards {
		fmt.Fprintf(&b, "### Card %d: %s\n\n", i+1, heading(string(card.Technique.Kind())))
		b.WriteString("**Configuration:**\n\n")
		b.WriteString("```json\n")
		b.WriteString(configJSON(card, true))
		b.WriteString("\n```\n\n")

		if card.Response != nil {
			b.WriteString("**Response:**\n\n")
			b.WriteString(card.Response.Text + "\n\n")
			if card.Response.Confidence != "" {
				fmt.Fprintf(&b, "**Confidence:** %s\n\n", card.Response.Confidence)
			}
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

func writeCSV(w io.Writer, data ExportData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Card Number", "Technique", "Configuration", "Response", "Confidence"}); err != nil {
		return err
	}
	for i, card := range data.Cards {
		var text, confidence string
		if card.Response != nil {
			text = strings.ReplaceAll(card.Response.Text, "\n", " ")
			confidence = string(card.Response.Confidence)
		}
		row := []string{fmt.Sprint(i + 1), string(card.Technique.Kind()), configJSON(card, false), text, confidence}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func configJSON(card ExportCard, indent bool) string {
	var (
		out []byte
		err error
	)
	if indent {
		out, err = json.MarshalIndent(card.Technique.Config, "", "  ")
	} else {
		out, err = json.Marshal(card.Technique.Config)
	}
	if err != nil {
		return "null"
	}
	return string(out)
}

// heading turns "multiStep" into "MULTI STEP".
func heading(kind string) string {
	var b strings.Builder
	for i, r := range kind {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
