package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/ailink/content"
	"github.com/visionforge/visionforge/internal/ailink/driver"
)

func TestClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", "").Complete(context.Background(), &driver.Request{Model: "gpt-4o"})
	require.ErrorContains(t, err, "api key")
}

func TestClientSendsMultiContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Equal(t, "gpt-4o", payload["model"])

		messages := payload["messages"].([]any)
		require.Len(t, messages, 1)
		parts := messages[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		require.Equal(t, "image_url", parts[0].(map[string]any)["type"])
		require.Equal(t, "text", parts[1].(map[string]any)["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-4o-2024","choices":[{"index":0,"message":{"role":"assistant","content":"A red valve."},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":4,"total_tokens":9}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	maxTokens := 256
	resp, err := client.Complete(context.Background(), &driver.Request{
		Model:     "gpt-4o",
		Messages:  []content.Message{content.UserMessage([]string{"https://example.com/a.png"}, "What is this?")},
		MaxTokens: &maxTokens,
	})
	require.NoError(t, err)
	require.Equal(t, "A red valve.", resp.Text())
	require.Equal(t, "gpt-4o-2024", resp.Model)
	require.Equal(t, 9, resp.Usage.TotalTokens)
}

func TestClientMapsAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), &driver.Request{
		Model:    "gpt-4o",
		Messages: []content.Message{content.UserMessage(nil, "hi")},
	})
	var perr *driver.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	require.Contains(t, perr.Message, "Incorrect API key")
}
