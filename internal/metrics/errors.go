package metrics

import (
	"strconv"

	"github.com/visionforge/visionforge/internal/observability"
)

// Error metric names.
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
	GatewayErrorsName    = "gateway_errors_total"
)

// RecordError records an HTTP error response by code and status.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsTotalName, 1, map[string]string{
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
		})
	}
}

// RecordPanic records a recovered panic.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, nil)
	}
}

// RecordErrorByEndpoint records an error against the route pattern.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsByEndpointName, 1, map[string]string{
			"endpoint":   endpoint,
			"error_code": errorCode,
		})
	}
}

// RecordGatewayError records a classified gateway failure.
func RecordGatewayError(code, technique string, retryable bool) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GatewayErrorsName, 1, map[string]string{
			"code":      code,
			"technique": technique,
			"retryable": strconv.FormatBool(retryable),
		})
	}
}
