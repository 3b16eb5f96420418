package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/server"
	"github.com/visionforge/visionforge/internal/server/handlers"
	"github.com/visionforge/visionforge/internal/workflow"
)

// fakeUpstream answers chat completions in order from replies and keeps
// every request body.
type fakeUpstream struct {
	mu       sync.Mutex
	replies  []string
	requests []string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, string(body))
	n := len(f.requests)
	f.mu.Unlock()

	if n > len(f.replies) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
		return
	}
	content, _ := json.Marshal(f.replies[n-1])
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"model":"anthropic/claude-3.5-sonnet","choices":[{"message":{"content":%s},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, content)
}

func newStack(t *testing.T, upstream *fakeUpstream) (*httptest.Server, *http.Client) {
	t.Helper()
	observability.InitCLILogger("test", false)

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	provider := ailink.OpenRouterProvider("test-key")
	provider.BaseURL = up.URL
	svc := ailink.NewService(ailink.NewRegistry(ailink.Config{
		Providers: map[string]ailink.ProviderInstanceConfig{"router": provider},
	}, nil))

	templates, err := workflow.BuiltinTemplates()
	require.NoError(t, err)

	srv := server.New(server.Options{
		API: &handlers.API{
			Analyzer:  svc,
			Templates: templates,
		},
		Version: handlers.BuildInfo{Version: "test"},
	})
	return serve(t, srv)
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestWorkflowRunChainsContextThroughGateway(t *testing.T) {
	upstream := &fakeUpstream{replies: []string{
		"I count three apples on the shelf.\n```json\n{\"count\": 3}\n```",
		"The apples are red and appear fresh.",
	}}
	ts, client := newStack(t, upstream)

	resp := postJSON(t, client, ts.URL+"/v1/workflows/run", map[string]any{
		"workflow": map[string]any{
			"name": "Shelf audit",
			"cards": []any{
				map[string]any{
					"title":     "Count",
					"technique": map[string]any{"type": "standard", "config": map[string]any{"prompt": "How many apples?"}},
					"images":    []string{"shelf"},
				},
				map[string]any{
					"title":     "Describe",
					"technique": map[string]any{"type": "standard", "config": map[string]any{"prompt": "Describe their condition."}},
					"images":    []string{"shelf"},
					"context":   map[string]any{"mode": "full"},
				},
			},
		},
		"images": map[string]string{"shelf": pngDataURL(t, 8, 8)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run workflow.RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, workflow.StatusCompleted, run.Status)
	require.Len(t, run.Results, 2)
	for _, res := range run.Results {
		assert.True(t, res.OK, res.Error)
		assert.Equal(t, "router", res.Provider)
	}
	assert.Equal(t, map[string]any{"count": float64(3)}, run.Results[0].Response.StructuredData)

	require.Len(t, upstream.requests, 2)
	assert.Contains(t, upstream.requests[0], "data:image/png;base64,")
	assert.Contains(t, upstream.requests[0], "How many apples?")
	assert.NotContains(t, upstream.requests[0], "three apples")
	assert.Contains(t, upstream.requests[1], "three apples")
}

func TestWorkflowRunRecordsGatewayFailures(t *testing.T) {
	upstream := &fakeUpstream{replies: []string{"Two dogs."}}
	ts, client := newStack(t, upstream)

	card := func(prompt string) map[string]any {
		return map[string]any{"technique": map[string]any{"type": "standard", "config": map[string]any{"prompt": prompt}}}
	}
	resp := postJSON(t, client, ts.URL+"/v1/workflows/run", map[string]any{
		"workflow": map[string]any{"name": "Dogs", "cards": []any{card("Count dogs"), card("Name breeds")}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run workflow.RunResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, workflow.StatusCompletedWithErrors, run.Status)
	require.Len(t, run.Results, 2)
	assert.True(t, run.Results[0].OK)
	assert.False(t, run.Results[1].OK)
	assert.Equal(t, ailink.CodeRateLimit, run.Results[1].ErrorCode)
}

func TestAnalyzeMapsRateLimitToHTTP429(t *testing.T) {
	ts, client := newStack(t, &fakeUpstream{})

	resp := postJSON(t, client, ts.URL+"/v1/analyze", map[string]any{
		"technique": map[string]any{"type": "standard", "config": map[string]any{"prompt": "Describe"}},
		"images":    []string{pngDataURL(t, 4, 4)},
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Equal(t, ailink.CodeRateLimit, body.Error.Details["gateway_code"])
}

func TestMetricsEndpointExposesRequestAndCardMetrics(t *testing.T) {
	initMetricsOrSkip(t)

	upstream := &fakeUpstream{replies: []string{"One cat."}}
	ts, client := newStack(t, upstream)

	resp := postJSON(t, client, ts.URL+"/v1/workflows/run", map[string]any{
		"workflow": map[string]any{"name": "Cat", "cards": []any{
			map[string]any{"technique": map[string]any{"type": "standard", "config": map[string]any{"prompt": "Count cats"}}},
		}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{"/health/live", "/v1/models", "/nope"} {
		r, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		require.NoError(t, r.Body.Close())
	}

	metricsResp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(metricsResp.Body)
	require.NoError(t, metricsResp.Body.Close())
	require.NoError(t, readErr)
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)

	content := string(body)
	assert.Contains(t, content, "test_http_requests_total")
	assert.Contains(t, content, "test_workflow_cards_total")
	assert.True(t, strings.Contains(metricsResp.Header.Get("Content-Type"), "text/plain"))
}

func TestMetricsEndpointWithoutExporter(t *testing.T) {
	original := observability.PrometheusExporter
	observability.PrometheusExporter = nil
	t.Cleanup(func() { observability.PrometheusExporter = original })

	ts, client := serve(t, server.New(server.Options{}))
	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
