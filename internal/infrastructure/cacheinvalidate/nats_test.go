package cacheinvalidate

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

func TestClassifyNATSErrorRetriesTransportFailures(t *testing.T) {
	class := classifyNATSError(nats.ErrNoServers)
	if !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected retryable+record, got %+v", class)
	}
}

func TestClassifyNATSErrorIgnoresContextCancellation(t *testing.T) {
	class := classifyNATSError(context.Canceled)
	if class.Retryable || class.RecordFailure {
		t.Fatalf("expected neither retryable nor recorded, got %+v", class)
	}
}

func TestClassifyNATSErrorTreatsUnknownAsNonRetryable(t *testing.T) {
	class := classifyNATSError(errors.New("boom"))
	if class.Retryable {
		t.Fatalf("expected non-retryable for unknown error")
	}
	if !class.RecordFailure {
		t.Fatalf("expected unknown error to count toward circuit failures")
	}
}

func TestWrapTemporaryIfNeededMarksRetryableErrors(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrTimeout)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary kind, got %v", err)
	}
}

func TestWrapTemporaryIfNeededLeavesNonRetryableErrorsUnchanged(t *testing.T) {
	original := errors.New("permanent failure")
	err := wrapTemporaryIfNeeded(original)
	if !errors.Is(err, original) {
		t.Fatalf("expected original error preserved, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("did not expect ErrTemporary kind")
	}
}
