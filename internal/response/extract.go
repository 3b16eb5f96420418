package response

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
)

var (
	jsonFencePattern  = regexp.MustCompile("(?s)```json\n(.*?)\n```")
	plainFencePattern = regexp.MustCompile("(?s)```\n(\\{.*?\\}|\\[.*?\\])\n```")
	bareObjectPattern = regexp.MustCompile(`(?s)\{.*".*":.*\}`)
	codeFencePattern  = regexp.MustCompile("(?s)```(\\w+)?\n(.*?)\n```")
)

// ExtractStructuredData returns the first JSON payload that parses, trying a
// ```json fence, then a plain fence holding an object or array, then the
// widest bare {...} span containing a "key": pair. It returns nil when none
// parse.
func ExtractStructuredData(text string) any {
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseJSON(m[1]); ok {
			return v
		}
	}
	if m := plainFencePattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseJSON(m[1]); ok {
			return v
		}
	}
	if m := bareObjectPattern.FindString(text); m != "" {
		if v, ok := parseJSON(m); ok {
			return v
		}
	}
	return nil
}

func parseJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

// ExtractCodeBlocks returns every fenced block in order. Blocks without a
// language tag are labeled "text".
func ExtractCodeBlocks(text string) []CodeBlock {
	blocks := []CodeBlock{}
	for _, loc := range codeFencePattern.FindAllStringSubmatchIndex(text, -1) {
		language := "text"
		if loc[2] >= 0 {
			language = text[loc[2]:loc[3]]
		}
		code := text[loc[4]:loc[5]]
		start := strings.Count(text[:loc[0]], "\n") + 1
		blocks = append(blocks, CodeBlock{
			Language:  language,
			Code:      code,
			StartLine: start,
			EndLine:   start + strings.Count(code, "\n"),
		})
	}
	return blocks
}

// FormatCodeBlocksHTML replaces each fenced block with an escaped <pre> element.
func FormatCodeBlocksHTML(text string) string {
	return codeFencePattern.ReplaceAllStringFunc(text, func(block string) string {
		m := codeFencePattern.FindStringSubmatch(block)
		language := m[1]
		if language == "" {
			language = "text"
		}
		return `<pre class="code-block" data-language="` + language + `"><code>` + html.EscapeString(m[2]) + `</code></pre>`
	})
}
