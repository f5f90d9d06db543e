// Package opserror turns dispatch failures into the payload the UI consumes
// and classifies that payload into a user-facing message.
package opserror

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"aidispatch/internal/domain"
)

// Code is the coarse failure class sent to clients.
type Code string

const (
	CodeRateLimit     Code = "RATE_LIMIT"
	CodeTimeout       Code = "TIMEOUT"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeProviderError Code = "PROVIDER_ERROR"
	CodeNetworkError  Code = "NETWORK_ERROR"
	CodeUnknown       Code = "UNKNOWN"
)

// OperationErrorPayload is the structured error returned by the dispatch API.
type OperationErrorPayload struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Operation  string `json:"operation,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

// FriendlyError is the user-facing rendering of a payload.
type FriendlyError struct {
	UserMessage string `json:"userMessage"`
	Details     string `json:"details,omitempty"`
	CanRetry    bool   `json:"canRetry"`
}

// FromError derives a payload from err.
func FromError(err error, provider, operation, requestID string) OperationErrorPayload {
	p := OperationErrorPayload{
		Code:      CodeUnknown,
		Provider:  provider,
		Operation: operation,
		RequestID: requestID,
	}
	if err == nil {
		return p
	}
	p.Message = err.Error()

	var rlErr *domain.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		p.Code = CodeRateLimit
		p.RetryAfter = rlErr.RetryAfter
	case errors.Is(err, domain.ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		p.Code = CodeTimeout
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotConfigured),
		errors.Is(err, domain.ErrUnknownProvider):
		p.Code = CodeInvalidInput
	case domain.IsUnsupported(err), errors.Is(err, domain.ErrProviderFailure):
		p.Code = CodeProviderError
	case errors.Is(err, domain.ErrNetwork):
		p.Code = CodeNetworkError
	}
	return p
}

// ToFriendly classifies p. Every code maps to a message; unrecognized codes
// fall through to the UNKNOWN rendering.
func ToFriendly(p OperationErrorPayload) FriendlyError {
	code := Code(strings.ToUpper(string(p.Code)))
	provider := strings.ToLower(p.Provider)

	switch code {
	case CodeRateLimit:
		wait := ""
		if p.RetryAfter > 0 {
			minutes := max(1, int(math.Ceil(float64(p.RetryAfter)/60)))
			wait = fmt.Sprintf(" Try again in about %d min.", minutes)
		}
		return FriendlyError{
			UserMessage: "You've hit the hourly limit." + wait,
			Details:     p.Message,
			CanRetry:    true,
		}
	case CodeTimeout:
		return FriendlyError{
			UserMessage: "The request took too long. Please try again in a moment or simplify your prompt.",
			Details:     p.Message,
			CanRetry:    true,
		}
	case CodeInvalidInput:
		if misconfigured(p.Message) {
			return FriendlyError{
				UserMessage: "This provider is misconfigured. Please choose a different provider for now.",
				Details:     p.Message,
				CanRetry:    false,
			}
		}
		return FriendlyError{
			UserMessage: "Your input seems invalid. Please adjust and try again.",
			Details:     p.Message,
			CanRetry:    true,
		}
	case CodeNetworkError:
		return FriendlyError{
			UserMessage: "Network issue detected. Please check your connection and try again.",
			Details:     p.Message,
			CanRetry:    true,
		}
	case CodeProviderError:
		if provider == string(domain.ProviderGemini) {
			return FriendlyError{
				UserMessage: "Google Gemini image generation is not currently available. Please choose a different provider.",
				Details:     p.Message,
				CanRetry:    false,
			}
		}
		return FriendlyError{
			UserMessage: "The AI service is temporarily unavailable. Please try another provider or try again later.",
			Details:     p.Message,
			CanRetry:    false,
		}
	default:
		return FriendlyError{
			UserMessage: "Something went wrong. Please try again or use a different provider.",
			Details:     p.Message,
			CanRetry:    true,
		}
	}
}

// misconfigured reports messages caused by server setup rather than the
// caller's input; retrying them cannot succeed.
func misconfigured(message string) bool {
	msg := strings.ToLower(message)
	for _, marker := range []string{"api key", "apikey", "unauthorized", domain.ErrNotConfigured.Error()} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// HTTPStatus picks the response status for a payload code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeProviderError, CodeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
