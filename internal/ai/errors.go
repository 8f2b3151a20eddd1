package ai

import (
	"errors"
	"fmt"
	"time"
)

// NotConfiguredError is returned when routing finds no candidate for a purpose
// at any override level, or when a resolved provider has no entry in the
// provider table.
type NotConfiguredError struct {
	Purpose  string
	Provider string
}

func (e *NotConfiguredError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] provider not configured for purpose: %s", e.Provider, e.Purpose)
	}
	return fmt.Sprintf("provider not configured for purpose: %s", e.Purpose)
}

// QuotaError reports a vendor rate/token limit.
type QuotaError struct {
	Provider   string
	RetryAfter time.Duration // 0 when unknown
	Err        error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("[%s] quota exceeded: %v", e.Provider, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// ConnectionError reports a network-level failure talking to a vendor.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("[%s] connection failed: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseError reports malformed or empty vendor output.
type ResponseError struct {
	Provider string
	Msg      string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("[%s] bad response: %s", e.Provider, e.Msg)
}

// SummaryError wraps any provider failure raised while summarizing, so callers
// never see vendor-specific types.
type SummaryError struct {
	Err error
}

func (e *SummaryError) Error() string { return "summary failed: " + e.Err.Error() }

func (e *SummaryError) Unwrap() error { return e.Err }

// IsProviderError reports whether err belongs to the provider error taxonomy
// (as opposed to argument validation or routing problems).
func IsProviderError(err error) bool {
	var q *QuotaError
	var c *ConnectionError
	var r *ResponseError
	var n *NotConfiguredError
	return errors.As(err, &q) || errors.As(err, &c) || errors.As(err, &r) || errors.As(err, &n)
}
