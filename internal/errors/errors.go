// Package errors maps visionforge failures onto gofulmen error envelopes and
// writes them as JSON HTTP responses.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/visionforge/visionforge/internal/ailink"
	"github.com/visionforge/visionforge/internal/imageset"
	"github.com/visionforge/visionforge/internal/metrics"
	"github.com/visionforge/visionforge/internal/observability"
	"github.com/visionforge/visionforge/internal/server/middleware"
	"github.com/visionforge/visionforge/internal/technique"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnavailable, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeInternal, message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// NewValidationFailed reports every violation under details.errors.
func NewValidationFailed(message string, violations []string) *errors.ErrorEnvelope {
	if violations == nil {
		violations = []string{}
	}
	env := errors.NewErrorEnvelope(CodeValidationFailed, message)
	return env.WithDetails(map[string]interface{}{"errors": violations})
}

// FromGatewayError maps a classified gateway failure. Rate limits become 429,
// timeouts 504, and everything else 502 with the user-facing guidance kept
// in details.
func FromGatewayError(gwErr *ailink.GatewayError) *errors.ErrorEnvelope {
	code := CodeExternalService
	switch gwErr.Code {
	case ailink.CodeRateLimit:
		code = CodeRateLimited
	case ailink.CodeTimeout:
		code = CodeTimeout
	}

	env := errors.NewErrorEnvelope(code, gwErr.Message)
	details := map[string]interface{}{
		"gateway_code": gwErr.Code,
		"user_message": gwErr.UserMessage,
		"retryable":    gwErr.Retryable,
	}
	if gwErr.Technique != "" {
		details["technique"] = string(gwErr.Technique)
	}
	if gwErr.StatusCode != 0 {
		details["upstream_status"] = gwErr.StatusCode
	}
	env = env.WithDetails(details)
	env, _ = env.WithSeverity(errors.SeverityMedium)
	return env
}

// Classify turns any error into an envelope. Known domain errors keep their
// meaning; anything else is an internal error that does not leak its text.
func Classify(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var (
		envelope   *errors.ErrorEnvelope
		validation *technique.ValidationError
		combo      *technique.CombinationError
		gateway    *ailink.GatewayError
		missing    *imageset.MissingError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case stderrors.As(err, &envelope) && envelope != nil:
		return envelope
	case stderrors.As(err, &validation):
		return NewValidationFailed(validation.Error(), validation.Violations)
	case stderrors.As(err, &combo):
		return NewValidationFailed(combo.Error(), combo.Conflicts)
	case stderrors.As(err, &gateway):
		return FromGatewayError(gateway)
	case stderrors.As(err, &missing):
		env := NewNotFoundError(missing.Error())
		return env.WithDetails(map[string]interface{}{"missing": missing.IDs})
	case stderrors.As(err, &tooLarge):
		return errors.NewErrorEnvelope(CodePayloadTooLarge, "request body too large")
	case stderrors.Is(err, imageset.ErrUnsupportedType), stderrors.Is(err, imageset.ErrTooLarge):
		return NewInvalidInputError(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewErrorEnvelope(CodeTimeout, "request timed out")
	}

	env := NewInternalError("unexpected error")
	env, _ = env.WithContext(map[string]interface{}{"wrapped_error": err.Error()})
	return env
}

// WrapInvalidInput builds an INVALID_INPUT envelope for a request that could
// not be decoded, carrying the request's correlation id.
func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeInvalidInput, message)
	env = EnsureCorrelationID(env, ctx)
	if err != nil {
		if updated, updateErr := env.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); updateErr == nil {
			env = updated
		}
	}
	return env
}

// EnsureCorrelationID attaches the request id from ctx when the envelope has
// none.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}
	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}
	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromCode resolves the HTTP status code for an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeExternalService:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ResponseDetails returns the API-safe details. Internal context such as
// wrapped error text is only exposed for client errors.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil {
		return nil
	}
	details := make(map[string]interface{}, len(envelope.Details))
	for key, value := range envelope.Details {
		details[key] = value
	}
	if HTTPStatusFromCode(envelope.Code) < http.StatusInternalServerError {
		for key, value := range envelope.Context {
			if _, exists := details[key]; !exists {
				details[key] = value
			}
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail as {"error": {...}}.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError classifies err and writes it as JSON.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, Classify(err))
}

// RespondWithEnvelope writes the envelope, logging it and counting it.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}
	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	envelope = EnsureCorrelationID(envelope, ctx)
	statusCode := HTTPStatusFromCode(envelope.Code)

	logHTTPError(envelope, statusCode)
	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(middleware.RoutePattern(r), envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   ResponseDetails(envelope),
			RequestID: envelope.CorrelationID,
		},
	})
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
		zap.String("request_id", envelope.CorrelationID),
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}
	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
