package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrCodePathNotFound, "path does not exist").
		WithComponent("dropbox").
		WithOperation("get_metadata")

	got := err.Error()
	want := "[dropbox:get_metadata] PATH_NOT_FOUND: path does not exist"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodePathNotFound, CategoryStorage},
		{ErrCodeRevisionConflict, CategoryStorage},
		{ErrCodeMountFailed, CategoryFilesystem},
		{ErrCodeUnsupportedOperation, CategoryFilesystem},
		{ErrCodeAuthenticationFailed, CategoryAuth},
		{ErrCodeInternalError, CategoryInternal},
	}

	for _, tt := range tests {
		if got := GetCategory(tt.code); got != tt.want {
			t.Errorf("GetCategory(%s) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestPredicatesThroughWrapping(t *testing.T) {
	base := NotFound("/missing")
	wrapped := fmt.Errorf("getattr: %w", base)

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt.Errorf wrapping")
	}
	if IsConflict(wrapped) {
		t.Error("IsConflict should not match a not-found error")
	}
	if IsNotFound(stderrors.New("plain")) {
		t.Error("IsNotFound should reject plain errors")
	}
}

func TestConflictCarriesPath(t *testing.T) {
	err := Conflict("/a/b.txt")
	if err.Path != "/a/b.txt" {
		t.Errorf("Path = %q, want /a/b.txt", err.Path)
	}
	if !IsConflict(err) {
		t.Error("Conflict() should satisfy IsConflict")
	}
}

func TestUnwrapAndIs(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewError(ErrCodeNetworkError, "request failed").WithCause(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
	if !stderrors.Is(err, NewError(ErrCodeNetworkError, "different message")) {
		t.Error("errors.Is should match on code, not message")
	}
}

func TestStringIncludesCause(t *testing.T) {
	err := NewError(ErrCodeRemoteFailure, "upload failed").
		WithCause(stderrors.New("500 from server"))
	if !strings.Contains(err.String(), "500 from server") {
		t.Errorf("String() missing cause: %s", err.String())
	}
}
