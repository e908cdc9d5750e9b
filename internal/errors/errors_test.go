package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "job not found",
			},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to persist result",
				Cause:   errors.New("connection reset"),
			},
			want: "failed to persist result: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through AppError to the cause")
	}
}

func TestConstructorsSetCodes(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"not found", NotFound("missing"), ErrCodeNotFound},
		{"conflict", Conflict("dup"), ErrCodeConflict},
		{"validation", Validation("bad input"), ErrCodeValidation},
		{"missing input", MissingInput("no resume source"), ErrCodeMissingInput},
		{"overloaded", ProviderOverloaded("primary", cause), ErrCodeProviderOverloaded},
		{"transient", TransientProvider("primary", cause), ErrCodeProviderTransient},
		{"deadline", DeadlineExceededf("rubric evaluation exceeded %s", "45s"), ErrCodeDeadlineExceeded},
		{"render", Render("pdf failed", cause), ErrCodeRender},
		{"persistence", Persistence("save failed", cause), ErrCodePersistence},
		{"internal", Internal("oops"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
		})
	}
}

func TestPredicatesMatchWrappedErrors(t *testing.T) {
	inner := ProviderOverloaded("primary", errors.New("529"))
	wrapped := fmt.Errorf("optimize content: %w", inner)

	if !IsProviderOverloaded(wrapped) {
		t.Error("IsProviderOverloaded should match through fmt.Errorf wrapping")
	}
	if IsTransientProvider(wrapped) {
		t.Error("IsTransientProvider should not match an overload error")
	}
	if GetCode(wrapped) != ErrCodeProviderOverloaded {
		t.Errorf("GetCode = %v, want %v", GetCode(wrapped), ErrCodeProviderOverloaded)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation is terminal", Validation("bad"), true},
		{"missing input is terminal", MissingInput("none"), true},
		{"transient is retryable", TransientProvider("primary", errors.New("503")), false},
		{"deadline is retryable at queue level", DeadlineExceededf("evaluation exceeded budget"), false},
		{"render is retryable at queue level", Render("chrome crashed", nil), false},
		{"plain error is retryable", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.err); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("queue_name", "queue name is required")
	if err.Field != "queue_name" {
		t.Errorf("Field = %v, want queue_name", err.Field)
	}
	if GetField(err) != "queue_name" {
		t.Errorf("GetField = %v, want queue_name", GetField(err))
	}
}
