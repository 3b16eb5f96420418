// Package response turns free-text model output into a structured view:
// embedded JSON, fenced code blocks, a confidence label, a summary and key
// findings. Nothing here returns an error; missing parts degrade to empty
// values.
package response

import "strings"

// Confidence is a heuristic label for how sure the model sounded.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

const maxKeyFindings = 5

// CodeBlock is a fenced block with its 1-based line span in the source text.
type CodeBlock struct {
	Language  string `json:"language"`
	Code      string `json:"code"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

// Processed is the derived view of one raw response.
type Processed struct {
	Text           string      `json:"text"`
	StructuredData any         `json:"structuredData"`
	CodeBlocks     []CodeBlock `json:"codeBlocks"`
	Confidence     Confidence  `json:"confidence"`
	Summary        string      `json:"summary"`
	KeyFindings    []string    `json:"keyFindings"`
}

// Process parses raw after trimming surrounding whitespace.
func Process(raw string) Processed {
	text := strings.TrimSpace(raw)
	return Processed{
		Text:           text,
		StructuredData: ExtractStructuredData(text),
		CodeBlocks:     ExtractCodeBlocks(text),
		Confidence:     ParseConfidence(text),
		Summary:        GenerateSummary(text),
		KeyFindings:    ExtractKeyFindings(text),
	}
}

// ErrorResponse is the processed view shown in place of a failed call.
func ErrorResponse(err error) Processed {
	msg := "Unknown error occurred"
	if err != nil {
		msg = err.Error()
	}
	return Processed{
		Text:        "Error: " + msg,
		CodeBlocks:  []CodeBlock{},
		Confidence:  ConfidenceUnknown,
		Summary:     "Response processing failed",
		KeyFindings: []string{},
	}
}

// Format is an expected response shape.
type Format string

const (
	FormatAny        Format = ""
	FormatJSON       Format = "json"
	FormatText       Format = "text"
	FormatStructured Format = "structured"
)

// ValidateFormat reports whether text satisfies the expected format.
func ValidateFormat(text string, expected Format) bool {
	switch expected {
	case FormatJSON:
		return ExtractStructuredData(text) != nil
	case FormatStructured:
		return ExtractStructuredData(text) != nil || len(ExtractCodeBlocks(text)) > 0
	case FormatText:
		return len(text) > 0
	default:
		return true
	}
}
