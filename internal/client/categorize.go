package client

import (
	"context"
	"errors"
	"net"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the upstreamErrorsTotal category label.
const (
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryRateLimited    ErrorCategory = "rate_limited"
	ErrorCategoryUpstream4xx    ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx    ErrorCategory = "upstream_5xx"
	ErrorCategoryInvalidPayload ErrorCategory = "invalid_payload"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return ErrorCategoryRateLimited
		case se.StatusCode >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstream4xx
		}
	}

	if errors.Is(err, ErrInvalidPayload) {
		return ErrorCategoryInvalidPayload
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}
