package credits

import (
	"errors"
	"testing"
)

func TestWrapErrorPreservesSentinel(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("store", "balance", "decrement", ErrInsufficientFunds)
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		test.Fatalf("expected wrapped error to match sentinel, got %v", wrapped)
	}
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "store" || operationError.Subject() != "balance" || operationError.Code() != "decrement" {
		test.Fatalf("unexpected segments: %v", operationError)
	}
}

func TestWrapErrorReturnsNilForNil(test *testing.T) {
	test.Parallel()
	if WrapError("store", "balance", "get", nil) != nil {
		test.Fatalf("expected nil for nil input")
	}
}
