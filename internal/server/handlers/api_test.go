package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/store"
	"github.com/visionforge/visionforge/internal/workflow"
)

type fakeAnalyzer struct {
	text     string
	err      error
	requests []ailink.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req ailink.AnalyzeRequest) (*ailink.AnalyzeResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ailink.AnalyzeResult{Text: f.text, Model: req.Model, Provider: "fake"}, nil
}

type fakeHistory struct {
	runs    []store.RunRecord
	results map[string][]workflow.CardResult
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]store.RunRecord, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (*store.RunRecord, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeHistory) ListResults(_ context.Context, runID string) ([]workflow.CardResult, error) {
	return f.results[runID], nil
}

func newTestRouter(t *testing.T, api *API) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/v1/validate", api.Validate)
	r.Post("/v1/prompts", api.BuildPrompt)
	r.Post("/v1/combinations/validate", api.ValidateCombination)
	r.Post("/v1/combinations/resolve", api.ResolveConflicts)
	r.Post("/v1/combinations/order", api.OrderForApplication)
	r.Post("/v1/combinations/prompt", api.CombinedPrompt)
	r.Post("/v1/responses", api.ProcessResponse)
	r.Post("/v1/analyze", api.Analyze)
	r.Post("/v1/workflows/run", api.RunWorkflow)
	r.Get("/v1/models", api.Models)
	r.Get("/v1/techniques", api.Techniques)
	r.Get("/v1/templates", api.ListTemplates)
	r.Get("/v1/templates/{id}", api.Template)
	r.Get("/v1/runs", api.Runs)
	r.Get("/v1/runs/{id}", api.Run)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func TestValidateAndPrompts(t *testing.T) {
	h := newTestRouter(t, &API{})

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		check    func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:     "valid technique",
			path:     "/v1/validate",
			body:     `{"technique":{"type":"standard","config":{"prompt":"Count the apples"}}}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode[map[string]any](t, rec)
				assert.Equal(t, true, body["valid"])
			},
		},
		{
			name:     "invalid technique is still 200",
			path:     "/v1/validate",
			body:     `{"technique":{"type":"standard","config":{"prompt":"  "}}}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode[map[string]any](t, rec)
				assert.Equal(t, false, body["valid"])
				assert.Equal(t, []any{"Prompt is required"}, body["errors"])
			},
		},
		{
			name:     "missing technique",
			path:     "/v1/validate",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			path:     "/v1/validate",
			body:     `{"technique":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty body",
			path:     "/v1/prompts",
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode[errorBody](t, rec)
				assert.Equal(t, "request body is required", body.Error.Message)
			},
		},
		{
			name:     "prompt built",
			path:     "/v1/prompts",
			body:     `{"technique":{"type":"standard","config":{"prompt":" Count the apples "}}}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode[promptResponse](t, rec)
				assert.Equal(t, "Count the apples", body.Prompt)
				assert.Equal(t, "standard", string(body.Kind))
			},
		},
		{
			name:     "prompt validation failure lists violations",
			path:     "/v1/prompts",
			body:     `{"technique":{"type":"standard","config":{"prompt":""}}}`,
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode[errorBody](t, rec)
				assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
				assert.Equal(t, []any{"Prompt is required"}, body.Error.Details["errors"])
			},
		},
		{
			name:     "structured prompt",
			path:     "/v1/prompts",
			body:     `{"technique":{"type":"standard","config":{"prompt":"Count"}},"structured":true}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decode[promptResponse](t, rec)
				assert.True(t, strings.HasPrefix(body.Prompt, "Count"))
				assert.Greater(t, len(body.Prompt), len("Count"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestCombinations(t *testing.T) {
	h := newTestRouter(t, &API{})

	rec := do(t, h, http.MethodPost, "/v1/combinations/validate", `{"techniques":[{"type":"fewShot"},{"type":"fewShot"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.Equal(t, false, res["compatible"])

	rec = do(t, h, http.MethodPost, "/v1/combinations/resolve", `{"techniques":[{"type":"fewShot"},{"type":"fewShot"},{"type":"multiStep"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[map[string][]map[string]any](t, rec)
	require.Len(t, resolved["techniques"], 2)

	rec = do(t, h, http.MethodPost, "/v1/combinations/order", `{"techniques":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"techniques":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/combinations/prompt", `{"techniques":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, rec).Error.Code)

	rec = do(t, h, http.MethodPost, "/v1/combinations/validate", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessResponse(t *testing.T) {
	h := newTestRouter(t, &API{})

	rec := do(t, h, http.MethodPost, "/v1/responses", `{"text":"  {\"count\": 3}  ","format":"json"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, `{"count": 3}`, body["text"])
	assert.Equal(t, true, body["formatValid"])

	rec = do(t, h, http.MethodPost, "/v1/responses", `{"text":"x","format":"xml"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze(t *testing.T) {
	const img = "data:image/png;base64,iVBORw0KGgo="

	t.Run("success", func(t *testing.T) {
		analyzer := &fakeAnalyzer{text: "There are 3 apples."}
		h := newTestRouter(t, &API{Analyzer: analyzer, DefaultModel: "test/model"})

		rec := do(t, h, http.MethodPost, "/v1/analyze",
			`{"technique":{"type":"standard","config":{"prompt":"Count the apples"}},"images":["`+img+`"]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[analyzeResponse](t, rec)
		assert.Equal(t, "Count the apples", body.Prompt)
		assert.Equal(t, "There are 3 apples.", body.Response.Text)
		assert.Equal(t, "test/model", body.Model)
		require.Len(t, analyzer.requests, 1)
		assert.Equal(t, []string{img}, analyzer.requests[0].Images)
	})

	t.Run("gateway rate limit", func(t *testing.T) {
		analyzer := &fakeAnalyzer{err: &ailink.GatewayError{Code: ailink.CodeRateLimit, Message: "slow down", Retryable: true}}
		h := newTestRouter(t, &API{Analyzer: analyzer})

		rec := do(t, h, http.MethodPost, "/v1/analyze", `{"technique":{"type":"standard","config":{"prompt":"Count"}}}`)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "RATE_LIMITED", body.Error.Code)
		assert.Equal(t, ailink.CodeRateLimit, body.Error.Details["gateway_code"])
	})

	t.Run("analyzer misconfigured", func(t *testing.T) {
		h := newTestRouter(t, &API{Analyzer: &fakeAnalyzer{err: stderrors.New("no provider configured")}})
		rec := do(t, h, http.MethodPost, "/v1/analyze", `{"technique":{"type":"standard","config":{"prompt":"Count"}}}`)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("bad image", func(t *testing.T) {
		analyzer := &fakeAnalyzer{text: "ok"}
		h := newTestRouter(t, &API{Analyzer: analyzer})
		rec := do(t, h, http.MethodPost, "/v1/analyze",
			`{"technique":{"type":"standard","config":{"prompt":"Count"}},"images":["/tmp/a.png"]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, analyzer.requests)
	})

	t.Run("few-shot without target", func(t *testing.T) {
		analyzer := &fakeAnalyzer{text: "ok"}
		h := newTestRouter(t, &API{Analyzer: analyzer})
		fewShot := `{"type":"fewShot","config":{"selectedTemplate":"counting","exampleImages":[{"id":"e1","name":"e1","coordinates":[{"x":1,"y":2}]}]}}`

		rec := do(t, h, http.MethodPost, "/v1/analyze", `{"technique":`+fewShot+`,"images":["`+img+`"]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, "INVALID_INPUT", decode[errorBody](t, rec).Error.Code)
		assert.Empty(t, analyzer.requests)

		rec = do(t, h, http.MethodPost, "/v1/analyze", `{"technique":`+fewShot+`,"images":["`+img+`","`+img+`"]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Len(t, analyzer.requests, 1)
	})

	t.Run("too many images", func(t *testing.T) {
		h := newTestRouter(t, &API{Analyzer: &fakeAnalyzer{text: "ok"}, MaxImages: 1})
		rec := do(t, h, http.MethodPost, "/v1/analyze",
			`{"technique":{"type":"standard","config":{"prompt":"Count"}},"images":["`+img+`","`+img+`"]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no analyzer", func(t *testing.T) {
		h := newTestRouter(t, &API{})
		for _, path := range []string{"/v1/analyze", "/v1/workflows/run"} {
			rec := do(t, h, http.MethodPost, path, `{}`)
			require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
			assert.Equal(t, "SERVICE_UNAVAILABLE", decode[errorBody](t, rec).Error.Code)
		}
	})
}

func TestRunWorkflow(t *testing.T) {
	analyzer := &fakeAnalyzer{text: "Found 2 cats."}
	h := newTestRouter(t, &API{Analyzer: analyzer, DefaultModel: "test/model"})

	body := `{"workflow":{"name":"cats","cards":[
		{"technique":{"type":"standard","config":{"prompt":"Find cats"}},"images":["https://example.com/cats.png"]},
		{"technique":{"type":"standard","config":{"prompt":"Describe"}},"images":["missing"]}
	]}}`
	rec := do(t, h, http.MethodPost, "/v1/workflows/run", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	run := decode[workflow.RunResult](t, rec)
	assert.Equal(t, workflow.StatusCompletedWithErrors, run.Status)
	require.Len(t, run.Results, 2)
	assert.True(t, run.Results[0].OK)
	assert.False(t, run.Results[1].OK)
	assert.Equal(t, workflow.CodeImageNotFound, run.Results[1].ErrorCode)
	require.Len(t, analyzer.requests, 1)

	rec = do(t, h, http.MethodPost, "/v1/workflows/run", `{"workflow":{"name":"empty","cards":[]}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/workflows/run", `{"workflow":{"name":"x","cards":[{"technique":{"type":"standard","config":{"prompt":"a"}}}]},"images":{"a":"not-a-data-url"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalog(t *testing.T) {
	templates, err := workflow.BuiltinTemplates()
	require.NoError(t, err)
	h := newTestRouter(t, &API{Templates: templates})

	rec := do(t, h, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[map[string][]any](t, rec)["models"])

	rec = do(t, h, http.MethodGet, "/v1/techniques", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string]json.RawMessage](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/v1/templates?category=counting", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]workflow.Template](t, rec)["templates"]
	require.Len(t, list, 1)
	assert.Equal(t, "object-counting", list[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/templates/object-counting?instantiate=Apples", "")
	require.Equal(t, http.StatusOK, rec.Code)
	wf := decode[workflow.Workflow](t, rec)
	assert.Equal(t, "Apples", wf.Name)
	assert.NotEmpty(t, wf.Cards)

	rec = do(t, h, http.MethodGet, "/v1/templates/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, newTestRouter(t, &API{}), http.MethodGet, "/v1/templates", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunHistory(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{
		runs: []store.RunRecord{
			{ID: "run-2", WorkflowName: "b", Status: workflow.StatusCompleted, CardCount: 1, StartedAt: started.Add(time.Hour)},
			{ID: "run-1", WorkflowName: "a", Status: workflow.StatusFailed, CardCount: 2, FailedCount: 1, StartedAt: started},
		},
		results: map[string][]workflow.CardResult{
			"run-1": {{CardID: "c1", Index: 0, OK: true}},
		},
	}
	h := newTestRouter(t, &API{History: history})

	rec := do(t, h, http.MethodGet, "/v1/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[map[string][]store.RunRecord](t, rec)["runs"]
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/runs?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[runDetail](t, rec)
	assert.Equal(t, "run-1", detail.ID)
	require.Len(t, detail.Results, 1)

	rec = do(t, h, http.MethodGet, "/v1/runs/run-9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
