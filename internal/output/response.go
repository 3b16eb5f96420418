package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/visionforge/visionforge/internal/response"
)

// Processed renders a processed model response.
func Processed(format Format, p response.Processed) (string, error) {
	blocks := make([]string, 0, len(p.CodeBlocks))
	for _, b := range p.CodeBlocks {
		lang := b.Language
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, fmt.Sprintf("%s (line %d): %s", lang, b.StartLine, truncate(b.Code, 60)))
	}
	structured := "no"
	if p.StructuredData != nil {
		structured = "yes"
	}

	return render(format, p, func() table.Writer {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRow(table.Row{"confidence", string(p.Confidence)})
		t.AppendRow(table.Row{"summary", p.Summary})
		t.AppendRow(table.Row{"structured data", structured})
		t.AppendRow(table.Row{"code blocks", len(p.CodeBlocks)})
		return t
	},
		section{title: "Key findings", lines: p.KeyFindings},
		section{title: "Code blocks", lines: blocks},
	)
}
