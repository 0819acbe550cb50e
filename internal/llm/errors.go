package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// NetworkError is a transport failure: unreachable host, reset, timeout.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ProviderAPIError is a non-2xx reply that carried a structured error.
type ProviderAPIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderAPIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: api error %d (%s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: api error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPError is a non-2xx reply without a recognisable error payload.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, body)
}

// InvalidResponseError means a reply could not be decoded into the shape
// the provider documents.
type InvalidResponseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid response: %s", e.Provider, e.Reason)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is one of the adapter error kinds. A
// caller's own cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var (
		netErr  *NetworkError
		apiErr  *ProviderAPIError
		httpErr *HTTPError
		invErr  *InvalidResponseError
	)
	return errors.As(err, &netErr) || errors.As(err, &apiErr) ||
		errors.As(err, &httpErr) || errors.As(err, &invErr)
}
