// Package output renders command results as tables, markdown or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// JSON renders value as indented JSON.
func JSON(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// section is a titled block of text printed after a table.
type section struct {
	title string
	lines []string
}

// render emits value as JSON, or the table built by build followed by any
// sections.
func render(format Format, value any, build func() table.Writer, sections ...section) (string, error) {
	if format == FormatJSON {
		return JSON(value)
	}

	t := build()
	var sb strings.Builder
	if format == FormatMarkdown {
		sb.WriteString(t.RenderMarkdown())
	} else {
		t.SetStyle(table.StyleRounded)
		sb.WriteString(t.Render())
	}
	sb.WriteString(renderSections(sections, format == FormatMarkdown))
	return sb.String(), nil
}

func renderSections(sections []section, markdown bool) string {
	var sb strings.Builder
	for _, s := range sections {
		if len(s.lines) == 0 {
			continue
		}
		sb.WriteString("\n\n")
		if markdown {
			sb.WriteString("### " + s.title + "\n\n")
		} else {
			sb.WriteString(s.title + ":\n")
		}
		for _, line := range s.lines {
			if markdown {
				sb.WriteString("- " + line + "\n")
			} else {
				sb.WriteString("  " + line + "\n")
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
