package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: CodeUnknown},
		{name: "plain", err: cause, want: CodeUnknown},
		{name: "database", err: NewDatabaseError("query", cause), want: CodeDatabase},
		{name: "permission", err: NewPermissionError("admins only"), want: CodePermission},
		{name: "unknown user", err: NewUnknownUserError("@ghost"), want: CodeUnknownUser},
		{name: "parse", err: NewParseError("bad date", nil), want: CodeParse},
		{name: "delivery", err: NewDeliveryError(42, cause), want: CodeDelivery},
		{name: "not found", err: NewNotFoundError("task"), want: CodeNotFound},
		{name: "conflict", err: NewConflictError("user exists", nil), want: CodeConflict},
		{name: "unavailable", err: NewServiceUnavailableError("ai down", cause), want: CodeServiceUnavailable},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NewValidationError("v", nil)), want: CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Code(tt.err); got != tt.want {
				t.Fatalf("Code() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewDeliveryError(7, cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause")
	}
	if err.Error() != "failed to deliver message to chat 7: connection refused" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestUnknownUserCarriesMention(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create task: %w", NewUnknownUserError("@unregistered"))

	var unknown *UnknownUserError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownUserError in chain")
	}
	if unknown.Mention != "@unregistered" {
		t.Fatalf("Mention = %q", unknown.Mention)
	}
	if !Is(err, CodeUnknownUser) {
		t.Fatalf("Is() should match the unknown user code")
	}
}
