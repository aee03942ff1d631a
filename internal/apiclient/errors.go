package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// APIError is a non-2xx response from the assistant API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server's "error" text, or the status text when absent.
	Message string
	// DetailStatus is detail.status when the server sent a structured detail.
	DetailStatus string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

const (
	detailVoiceLimit    = "voice_limit_reached"
	detailQuotaExceeded = "quota_exceeded"
)

// IsVoiceLimit reports whether err means the synthesis voice is out of quota.
func IsVoiceLimit(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	switch apiErr.DetailStatus {
	case detailVoiceLimit, detailQuotaExceeded:
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, detailVoiceLimit) || strings.Contains(msg, detailQuotaExceeded)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status}

	var parsed errorBody
	if err := sonic.ConfigStd.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Error
		if len(parsed.Detail) > 0 {
			var structured struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			var text string
			switch {
			case sonic.ConfigStd.Unmarshal(parsed.Detail, &structured) == nil:
				apiErr.DetailStatus = structured.Status
				if apiErr.Message == "" {
					apiErr.Message = structured.Message
				}
			case sonic.ConfigStd.Unmarshal(parsed.Detail, &text) == nil:
				if apiErr.Message == "" {
					apiErr.Message = text
				}
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
