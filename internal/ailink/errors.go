package ailink

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/visionforge/visionforge/internal/ailink/driver"
	"github.com/visionforge/visionforge/internal/technique"
)

// Gateway error codes.
const (
	CodeAuth        = "GATEWAY_AUTH"
	CodeRateLimit   = "GATEWAY_RATE_LIMIT"
	CodeBadRequest  = "GATEWAY_BAD_REQUEST"
	CodeUnavailable = "GATEWAY_UNAVAILABLE"
	CodeTimeout     = "GATEWAY_TIMEOUT"
	CodeNetwork     = "GATEWAY_NETWORK"
	CodeError       = "GATEWAY_ERROR"
)

// GatewayError is a classified failure of an analysis call.
type GatewayError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	UserMessage string         `json:"user_message"`
	Details     string         `json:"details,omitempty"`
	StatusCode  int            `json:"status_code,omitempty"`
	Retryable   bool           `json:"retryable"`
	Technique   technique.Kind `json:"technique,omitempty"`
	Err         error          `json:"-"`
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// MapProviderError classifies err from a driver call made for kind.
func MapProviderError(err error, kind technique.Kind) *GatewayError {
	if err == nil {
		return nil
	}
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{
			Code:        CodeTimeout,
			Message:     "provider request timed out",
			UserMessage: "The AI service took too long to respond. Please try again.",
			Retryable:   true,
			Technique:   kind,
			Err:         err,
		}
	}

	var perr *driver.ProviderError
	if !errors.As(err, &perr) || perr == nil {
		return &GatewayError{
			Code:        CodeNetwork,
			Message:     "Network connection failed",
			UserMessage: "Unable to connect to the AI service. Please check your internet connection.",
			Details:     err.Error(),
			Retryable:   true,
			Technique:   kind,
			Err:         err,
		}
	}

	out := &GatewayError{
		StatusCode: perr.StatusCode,
		Details:    strings.TrimSpace(perr.Message),
		Technique:  kind,
		Err:        err,
	}
	status := perr.StatusCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		out.Code = CodeAuth
		out.Message = "API authentication failed"
		out.UserMessage = "Your API key is invalid or expired. Please update it in settings."
	case status == http.StatusTooManyRequests:
		out.Code = CodeRateLimit
		out.Message = "Rate limit exceeded"
		out.UserMessage = "Too many requests. Please wait a moment and try again."
		out.Retryable = true
	case status >= 500 && status <= 599:
		out.Code = CodeUnavailable
		out.Message = "Server error"
		out.UserMessage = "The AI service is experiencing issues. Please try again later."
		out.Retryable = true
	case status >= 400 && status <= 499:
		out.Code = CodeBadRequest
		out.Message = "provider rejected request"
		out.UserMessage = TechniqueGuidance(kind, perr.Message)
		if out.UserMessage == "" {
			out.UserMessage = "Invalid request. Please check your configuration."
		}
	default:
		out.Code = CodeError
		out.Message = "provider request failed"
		out.UserMessage = "An error occurred while processing your request. Please try again."
		out.Retryable = true
	}
	return out
}

var imageGuidance = map[technique.Kind]string{
	technique.KindStandard:       "Make sure you have uploaded an image and selected a vision-capable model.",
	technique.KindFewShot:        "Ensure all example images and the target image are properly uploaded and visible.",
	technique.KindMultiStep:      "Verify that your image is uploaded and the model supports vision capabilities.",
	technique.KindVisualPointing: "Check that your marked image is properly processed and exported.",
	technique.KindMultiImage:     "Ensure all reference images and the target image are uploaded correctly.",
}

const sizeGuidance = "Your prompt or images may be too large. Try reducing the number of steps or images."

// TechniqueGuidance suggests a fix for a rejected request based on the
// provider message. It returns "" when nothing applies.
func TechniqueGuidance(kind technique.Kind, message string) string {
	if kind == "" {
		return ""
	}
	lower := strings.ToLower(message)
	if strings.Contains(lower, "image") || strings.Contains(lower, "vision") {
		return imageGuidance[kind]
	}
	if strings.Contains(lower, "token") || strings.Contains(lower, "length") {
		return sizeGuidance
	}
	return ""
}
