package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrNormalizerFailure marks a recovered normalizer error; callers fall
	// back to the original input text.
	ErrNormalizerFailure = errors.New("normalizer failure")
	// ErrLLMUnavailable marks an LLM call that could not reach or complete
	// against the backend (network error, timeout, non-2xx status).
	ErrLLMUnavailable = errors.New("llm unavailable")
	// ErrLLMFormatError marks an LLM response that failed schema or JSON
	// validation.
	ErrLLMFormatError = errors.New("llm format error")
	// ErrLexicalUnavailable marks a failed lexical-store call.
	ErrLexicalUnavailable = errors.New("lexical store unavailable")
	// ErrVectorUnavailable marks a failed vector-store call.
	ErrVectorUnavailable = errors.New("vector store unavailable")
	// ErrBothRetrievalStoresUnavailable marks a hybrid search where both
	// sub-searches failed.
	ErrBothRetrievalStoresUnavailable = errors.New("both retrieval stores unavailable")
	// ErrEmptyResults marks a completed, successful retrieval that matched
	// nothing.
	ErrEmptyResults = errors.New("empty results")
	// ErrTimeout marks a stage or query-level deadline exceeded.
	ErrTimeout = errors.New("timeout")
	// ErrInternal marks an unexpected, non-recoverable failure.
	ErrInternal = errors.New("internal error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
