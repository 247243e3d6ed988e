package qdrant

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// statusError carries the HTTP status of a non-2xx lexical-store response so
// the retry classifier can tell a transient 503 from a permanent 400.
type statusError struct {
	Path       string
	StatusCode int
	Status     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant request %s status: %s", e.Path, e.Status)
}

func classifyLexicalError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	if domain.IsKind(err, domain.ErrLexicalUnavailable) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
