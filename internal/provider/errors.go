package provider

import (
	"net/http"
	"strings"

	"github.com/h2adev/reelforge/internal/apierr"
)

// Classify maps an HTTP status code and response body to the error
// taxonomy surfaced to callers, and whether the synchronous retry path
// should retry it. Mirrors the retryable/non-retryable split the original
// service's queue client applies around rate-limit and 5xx responses.
func Classify(statusCode int, body string) (apierr.APISubClass, bool) {
	lower := strings.ToLower(body)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return apierr.SubClassRateLimit, true
	case statusCode == http.StatusBadGateway,
		statusCode == http.StatusServiceUnavailable,
		statusCode == http.StatusGatewayTimeout:
		return apierr.SubClassDownstreamTransient, true
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return apierr.SubClassAuth, false
	case statusCode == http.StatusRequestTimeout:
		return apierr.SubClassTimeout, true
	case strings.Contains(lower, "content_policy") || strings.Contains(lower, "content policy"):
		return apierr.SubClassContentPolicy, false
	case strings.Contains(lower, "downstream"):
		// The original explicitly refuses to retry "downstream service" errors
		// even though they look transient — the provider already retried
		// internally and failed.
		return apierr.SubClassDownstreamPermanent, false
	case statusCode >= 400 && statusCode < 500:
		return apierr.SubClassUnknown, false
	default:
		return apierr.SubClassUnknown, false
	}
}

// ClassifyNetworkError maps a transport-level error (not an HTTP status) to
// the taxonomy — connection resets, timeouts, and similar are retryable.
func ClassifyNetworkError(err error) (apierr.APISubClass, bool) {
	if err == nil {
		return "", false
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "connection reset") || strings.Contains(s, "connection refused") ||
		strings.Contains(s, "eof") || strings.Contains(s, "broken pipe") {
		return apierr.SubClassTimeout, true
	}
	return apierr.SubClassUnknown, false
}

// isNotReady reports whether a poll-time error represents a "not ready yet"
// condition rather than a real failure — these never count against the
// worker's failure path during the long-running polled path.
func isNotReady(statusCode int, body string) bool {
	lower := strings.ToLower(body)
	if statusCode == http.StatusNotFound {
		return true
	}
	for _, marker := range []string{"pending", "in_queue", "processing", "not found"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
