package vovk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestNewError(t *testing.T) {
	err := NewError(CodeNotFound, "resource not found")
	if err.Code != CodeNotFound {
		t.Errorf("expected code %s, got %s", CodeNotFound, err.Code)
	}
	if err.Message != "resource not found" {
		t.Errorf("expected message 'resource not found', got %s", err.Message)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(CodeInvalidArgument, "invalid field: %s", "email")
	if err.Message != "invalid field: email" {
		t.Errorf("expected formatted message, got %s", err.Message)
	}
	if err.Error() != "invalid_argument: invalid field: email" {
		t.Errorf("unexpected Error() %q", err.Error())
	}
}

func TestWithDetail_DoesNotMutate(t *testing.T) {
	base := NewError(CodeNotFound, "missing").WithDetail("id", 1)
	derived := base.WithDetail("kind", "user")
	if len(base.Details) != 1 {
		t.Errorf("base mutated: %v", base.Details)
	}
	if len(derived.Details) != 2 {
		t.Errorf("derived details = %v", derived.Details)
	}
	if same := derived.WithDetails(nil); same != derived {
		t.Error("WithDetails(nil) should return the receiver")
	}
	merged := derived.WithDetails(map[string]any{"id": 2})
	if merged.Details["id"] != 2 || derived.Details["id"] != 1 {
		t.Errorf("merge wrong: %v / %v", merged.Details, derived.Details)
	}
}

func TestDefaultErrorTransformer(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		wantCode ErrorCode
		wantMsg  string
	}{
		{"passthrough", NewError(CodeNotFound, "not found"), CodeNotFound, "not found"},
		{"wrapped passthrough", fmt.Errorf("ctx: %w", NewError(CodeConflict, "dup")), CodeConflict, "dup"},
		{"deadline", context.DeadlineExceeded, CodeDeadlineExceeded, "request timeout"},
		{"canceled", context.Canceled, CodeCanceled, "context canceled"},
		{"stream stopped", ErrStreamStopped, CodeCanceled, "stream stopped"},
		{"generic", errors.New("something failed"), CodeInternal, "something failed"},
		{"joined", errors.Join(errors.New("first"), errors.New("second")), CodeInternal, "first; second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultErrorTransformer(tt.input)
			if got.Code != tt.wantCode || got.Message != tt.wantMsg {
				t.Errorf("got %s %q, want %s %q", got.Code, got.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}
	if DefaultErrorTransformer(nil) != nil {
		t.Error("nil error should map to nil")
	}
}

func TestDefaultErrorTransformer_Validation(t *testing.T) {
	type input struct {
		Name  string `validate:"required"`
		Email string `validate:"email"`
	}
	err := validator.New().Struct(input{Email: "nope"})
	got := DefaultErrorTransformer(err)
	if got.Code != CodeInvalidArgument {
		t.Fatalf("code = %s", got.Code)
	}
	if got.Details["Name"] != "required" || got.Details["Email"] != "must be a valid email address" {
		t.Errorf("details = %v", got.Details)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		CodeInvalidArgument:  http.StatusBadRequest,
		CodeUnauthenticated:  http.StatusUnauthorized,
		CodePermissionDenied: http.StatusForbidden,
		CodeNotFound:         http.StatusNotFound,
		CodeAlreadyExists:    http.StatusConflict,
		CodeCanceled:         499,
		CodeDeadlineExceeded: http.StatusGatewayTimeout,
		ErrorCode("bogus"):   http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s: got %d, want %d", code, got, want)
		}
	}
}
