package api

import "fmt"

// NetworkError wraps connectivity and timeout failures. It is never
// retried automatically; recovery is a user-initiated reload.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DomainError is a 4xx/5xx response other than 429. The server's message
// is reported verbatim and the call is terminal.
type DomainError struct {
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// RateLimitedError is a 429 response. RetryAfter is the server-suggested
// delay in seconds; Category names the limited resource group so the UI
// can label the countdown.
type RateLimitedError struct {
	RetryAfter int
	Category   string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %ds", e.Category, e.RetryAfter)
}
