package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStacTableError_Error(t *testing.T) {
	err := New(ErrCategoryNotFound, CodeNoFragments, "no parquet files")
	expected := "[NOT_FOUND:NO_FRAGMENTS] no parquet files"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestStacTableError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewConnectionError(CodeReadFailed, "read failed", cause)
	expected := "[CONNECTION:READ_FAILED] read failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestStacTableError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewValidationError(CodeDocumentFailed, "invalid", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestStacTableError_Is(t *testing.T) {
	err1 := NewInvalidArgument(CodeMissingOption, "first")
	err2 := NewInvalidArgument(CodeMissingOption, "second")
	err3 := NewInvalidArgument(CodeAmbiguousValue, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
	if !errors.Is(err3, ErrInvalidArgument) {
		t.Error("category sentinel should match any code")
	}
	if errors.Is(err3, ErrNotFound) {
		t.Error("category sentinel should not match other categories")
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewNotFound(CodeEmptyColumn, "empty"))

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt wrapping")
	}
	if IsInvalidArgument(wrapped) || IsConnection(wrapped) || IsValidation(wrapped) {
		t.Error("only the NotFound predicate should match")
	}
	if GetCode(wrapped) != CodeEmptyColumn {
		t.Errorf("got code %q", GetCode(wrapped))
	}
	if GetCategory(errors.New("plain")) != "" {
		t.Error("plain errors have no category")
	}
}

func TestWithDetails(t *testing.T) {
	base := NewInvalidArgument(CodeAmbiguousValue, "ambiguous")
	detailed := base.WithDetails(map[string]interface{}{"count": 2})

	if base.Details != nil {
		t.Error("WithDetails must not mutate the receiver")
	}
	if detailed.Details["count"] != 2 {
		t.Errorf("unexpected details: %v", detailed.Details)
	}
}
