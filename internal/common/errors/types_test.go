package errors

import (
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "type and message only",
			err:      AuthError("token rejected"),
			expected: "authentication: token rejected",
		},
		{
			name:     "with code",
			err:      ForbiddenError("access denied by provider").WithCode("403"),
			expected: "authorization: access denied by provider: code=403",
		},
		{
			name:     "with cause",
			err:      ConnectionError("request failed", fmt.Errorf("dial tcp: refused")),
			expected: "connection: request failed: cause=dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorType
	}{
		{401, ErrTypeAuth},
		{403, ErrTypeForbidden},
		{404, ErrTypeNotFound},
		{422, ErrTypeValidation},
		{500, ErrTypeTransient},
		{502, ErrTypeTransient},
		{503, ErrTypeTransient},
		{418, ErrTypeInternal},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := FromStatusCode(tt.status, "")
			if err.Type != tt.expected {
				t.Errorf("expected type %s, got %s", tt.expected, err.Type)
			}
		})
	}
}

func TestFromStatusCode_ValidationDetail(t *testing.T) {
	err := FromStatusCode(422, "case_number is required")
	if err.Type != ErrTypeValidation {
		t.Fatalf("expected validation error, got %s", err.Type)
	}
	if want := "provider rejected the record: case_number is required"; err.Message != want {
		t.Errorf("expected %q, got %q", want, err.Message)
	}
}

func TestIsType(t *testing.T) {
	err := InvariantError("cannot delete without remote identifier")

	if !IsType(err, ErrTypeInvariant) {
		t.Error("expected IsType to match invariant")
	}
	if IsType(err, ErrTypeAuth) {
		t.Error("expected IsType to reject mismatched type")
	}
	if IsType(nil, ErrTypeInvariant) {
		t.Error("expected IsType to reject nil")
	}
	if IsType(fmt.Errorf("plain"), ErrTypeInvariant) {
		t.Error("expected IsType to reject non-AppError")
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(nil); got != "" {
		t.Errorf("expected empty type for nil, got %s", got)
	}
	if got := GetType(fmt.Errorf("plain")); got != ErrTypeInternal {
		t.Errorf("expected internal for plain error, got %s", got)
	}
	if got := GetType(TransientError("upstream down", nil)); got != ErrTypeTransient {
		t.Errorf("expected transient, got %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := InternalError("wrapped", cause)
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return the cause")
	}
}
