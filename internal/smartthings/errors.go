package smartthings

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorKind classifies API failures for retry and caller-facing decisions.
type ErrorKind string

const (
	// KindAuth means the platform rejected the bearer credential.
	KindAuth ErrorKind = "auth"

	// KindForbidden means the credential lacks the required scope.
	KindForbidden ErrorKind = "forbidden"

	// KindNotFound means the device, location, or scene does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindValidation means the request was malformed or the capability is
	// unsupported. Never retried.
	KindValidation ErrorKind = "validation"

	// KindRateLimited means the platform throttled the request.
	KindRateLimited ErrorKind = "rate_limited"

	// KindServer means a 5xx from the platform.
	KindServer ErrorKind = "server"

	// KindNetwork means the request never produced a response.
	KindNetwork ErrorKind = "network"
)

// APIError is a structured failure from the SmartThings API. RequestID is the
// platform-provided identifier, preserved verbatim for support tickets.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	RequestID  string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("smartthings: %s (%d): %s [request %s]", e.Kind, e.StatusCode, msg, e.RequestID)
	}
	return fmt.Sprintf("smartthings: %s (%d): %s", e.Kind, e.StatusCode, msg)
}

// Retryable reports whether the failure may be retried safely from the
// client's point of view. Auth has its own one-shot refresh path.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServer, KindNetwork:
		return true
	}
	return false
}

// errorBody is the SmartThings JSON error envelope.
type errorBody struct {
	RequestID string `json:"requestId"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Code    string `json:"code"`
			Target  string `json:"target"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

// newAPIError builds an APIError from a non-2xx response body.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		apiErr.RequestID = parsed.RequestID
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
	}
	if apiErr.Message == "" && len(body) > 0 {
		apiErr.Message = string(body)
	}

	return apiErr
}

func kindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized:
		return KindAuth
	case statusCode == http.StatusForbidden:
		return KindForbidden
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindServer
	default:
		return KindValidation
	}
}
