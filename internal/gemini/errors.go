package gemini

import (
	"errors"
	"net/http"

	"google.golang.org/genai"
)

var (
	// ErrModelUnavailable: the selected model does not exist or is not
	// served (HTTP 404). The user should switch modes.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrQuotaExhausted: the upstream free tier is used up (HTTP 429).
	ErrQuotaExhausted = errors.New("upstream quota exhausted")
	// ErrPermissionDenied: the API key was rejected (HTTP 403).
	ErrPermissionDenied = errors.New("permission denied by upstream")
)

// UpstreamError carries any other upstream failure; its message is surfaced
// to the user verbatim.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Message
}

// classify maps an API error onto the taxonomy by status code.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyCode(apiErr.Code, apiErr.Message)
	}
	return &UpstreamError{Message: err.Error()}
}

func classifyCode(code int, message string) error {
	switch code {
	case http.StatusNotFound:
		return ErrModelUnavailable
	case http.StatusTooManyRequests:
		return ErrQuotaExhausted
	case http.StatusForbidden:
		return ErrPermissionDenied
	default:
		return &UpstreamError{Message: message}
	}
}
