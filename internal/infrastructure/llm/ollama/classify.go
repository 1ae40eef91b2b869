package ollama

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/resilience"
)

// malformedDraftError is a reply that arrived but is not a usable solution.
type malformedDraftError struct {
	reason string
	err    error
}

func (e *malformedDraftError) Error() string {
	if e.err != nil {
		return "malformed draft: " + e.reason + ": " + e.err.Error()
	}
	return "malformed draft: " + e.reason
}

func (e *malformedDraftError) Unwrap() error { return e.err }

// classifyDraftError decides whether a drafting attempt is worth repeating.
// A malformed reply is retried without counting against the breaker.
func classifyDraftError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var malformed *malformedDraftError
	if errors.As(err, &malformed) {
		return resilience.ErrorClassification{Retryable: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if retryableStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// markTemporary tags failures a later redelivery could succeed on.
func markTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyDraftError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
