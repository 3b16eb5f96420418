package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/response"
)

func TestSequenceContextSkipsCardsWithoutResponses(t *testing.T) {
	cards := []Card{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	first := &response.Processed{Text: "first"}
	third := &response.Processed{Text: "third"}
	results := map[string]*response.Processed{"a": first, "c": third, "d": {Text: "later"}}

	require.Equal(t, []*response.Processed{first, third}, SequenceContext(cards, results, 3))
	require.Empty(t, SequenceContext(cards, results, 0))
	require.Len(t, SequenceContext(cards, results, 10), 3)
}

func TestContextFor(t *testing.T) {
	long := strings.Repeat("x", 250)
	withSummary := &response.Processed{Text: "full text", Summary: "short"}
	noSummary := &response.Processed{Text: long}
	structured := &response.Processed{Text: "raw", StructuredData: map[string]any{"count": 3}}

	tests := []struct {
		name string
		resp *response.Processed
		mode ContextMode
		want string
	}{
		{"full", withSummary, ContextFull, "full text"},
		{"summary", withSummary, ContextSummary, "short"},
		{"summary fallback", noSummary, ContextSummary, long[:200]},
		{"structured", structured, ContextStructured, "{\n  \"count\": 3\n}"},
		{"structured fallback", withSummary, ContextStructured, "full text"},
		{"custom", nil, ContextCustom, "my notes"},
		{"nil response", nil, ContextFull, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ContextFor(tt.resp, tt.mode, "my notes"))
		})
	}
}

func TestWithContext(t *testing.T) {
	require.Equal(t, "Context from previous analysis:\nthree cars\n\nCount trucks", WithContext("Count trucks", "three cars"))
	require.Equal(t, "Count trucks", WithContext("Count trucks", "  "))
}
