package metrics

import (
	"strconv"
	"time"

	"github.com/visionforge/visionforge/internal/observability"
)

// Metric names follow Prometheus conventions.
var (
	// Technique metrics
	ValidationsTotal   = "technique_validations_total"
	PromptBuildsTotal  = "technique_prompt_builds_total"
	CombinationsTotal  = "technique_combinations_total"
	ResponsesProcessed = "responses_processed_total"

	// Gateway metrics
	GatewayCallsTotal    = "gateway_calls_total"
	GatewayCallDuration  = "gateway_call_duration_ms"
	GatewayTokensTotal   = "gateway_tokens_total"
	WorkflowCardsTotal   = "workflow_cards_total"
	WorkflowCardDuration = "workflow_card_duration_ms"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordValidation records one technique validation.
func RecordValidation(kind string, valid bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ValidationsTotal, 1, map[string]string{
			"technique": kind,
			"valid":     strconv.FormatBool(valid),
		})
	}
}

// RecordPromptBuild records one prompt build attempt.
func RecordPromptBuild(kind string, ok bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PromptBuildsTotal, 1, map[string]string{
			"technique": kind,
			"status":    outcome(ok),
		})
	}
}

// RecordCombination records a combination check.
func RecordCombination(size int, compatible bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(CombinationsTotal, 1, map[string]string{
			"size":       strconv.Itoa(size),
			"compatible": strconv.FormatBool(compatible),
		})
	}
}

// RecordResponseProcessed records a processed response by confidence label.
func RecordResponseProcessed(confidence string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ResponsesProcessed, 1, map[string]string{
			"confidence": confidence,
		})
	}
}

// RecordGatewayCall records one LLM gateway call and its latency.
func RecordGatewayCall(provider, model, status string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		labels := map[string]string{"provider": provider, "model": model, "status": status}
		_ = observability.TelemetrySystem.Counter(GatewayCallsTotal, 1, labels)
		_ = observability.TelemetrySystem.Histogram(GatewayCallDuration, duration, map[string]string{"provider": provider})
	}
}

// RecordTokenUsage adds prompt and completion token counts.
func RecordTokenUsage(model string, promptTokens, completionTokens int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GatewayTokensTotal, float64(promptTokens), map[string]string{"model": model, "kind": "prompt"})
		_ = observability.TelemetrySystem.Counter(GatewayTokensTotal, float64(completionTokens), map[string]string{"model": model, "kind": "completion"})
	}
}

// RecordCardRun records one workflow card execution.
func RecordCardRun(kind string, ok bool, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(WorkflowCardsTotal, 1, map[string]string{
			"technique": kind,
			"status":    outcome(ok),
		})
		_ = observability.TelemetrySystem.Histogram(WorkflowCardDuration, duration, map[string]string{"technique": kind})
	}
}

// RecordHealthCheck records a health check execution.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{"check": checkName, "status": status})
		_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
	}
}

// SetServerStartTime records the server start time (Unix timestamp).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetServerUptime records the server uptime in seconds.
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerUptime, float64(seconds), nil)
	}
}
