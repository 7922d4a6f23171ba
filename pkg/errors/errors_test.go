package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrCodeNotFound, "repository acme/widget not found"),
			want: "NOT_FOUND: repository acme/widget not found",
		},
		{
			name: "with cause",
			err:  Wrap(ErrCodeTransfer, fmt.Errorf("connection reset"), "download failed"),
			want: "TRANSFER_ERROR: download failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeTimeout, "gradle invocation timed out")

	if !Is(err, ErrCodeTimeout) {
		t.Error("Is() should match the error's own code")
	}
	if Is(err, ErrCodeNotFound) {
		t.Error("Is() should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrCodeTimeout) {
		t.Error("Is() should not match plain errors")
	}

	// Codes survive wrapping with fmt.Errorf.
	wrapped := fmt.Errorf("collect build.gradle: %w", err)
	if !Is(wrapped, ErrCodeTimeout) {
		t.Error("Is() should unwrap fmt-wrapped errors")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(ErrCodeInternal, cause, "unexpected")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should satisfy errors.Is on the cause")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeRateLimited, "slow down")); got != ErrCodeRateLimited {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeRateLimited)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode() on plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeUnauthorized, "token rejected")
	if got := UserMessage(err); got != "token rejected" {
		t.Errorf("UserMessage() = %q, want %q", got, "token rejected")
	}
	if got := UserMessage(stderrors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() on plain error = %q", got)
	}
}

func TestExitError(t *testing.T) {
	exit := &ExitError{ExitCode: 42, Output: "FAILURE: Build failed"}
	err := Wrap(ErrCodeNonZeroExit, exit, "gradle dependencies failed")

	if !Is(err, ErrCodeNonZeroExit) {
		t.Fatal("expected NONZERO_EXIT code")
	}

	var ee *ExitError
	if !stderrors.As(err, &ee) {
		t.Fatal("expected ExitError in chain")
	}
	if ee.ExitCode != 42 {
		t.Errorf("ExitCode = %d, want 42", ee.ExitCode)
	}
}
