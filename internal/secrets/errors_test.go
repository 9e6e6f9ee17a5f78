package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorKinds_AreExclusive(t *testing.T) {
	kinds := []error{ErrNoEntry, ErrAmbiguous, ErrPlatformFailure}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no entry", NewSecretError("get", "svc", "u", ErrNoEntry), ErrNoEntry},
		{"ambiguous", NewSecretError("get", "svc", "u", &AmbiguousError{Count: 3}), ErrAmbiguous},
		{"platform", NewSecretError("get", "svc", "u", &PlatformError{Op: "get", Code: -25300, Msg: "boom"}), ErrPlatformFailure},
		{"invalid", invalidErr("build", "user", "must not be empty"), ErrPlatformFailure},
		{"unavailable", unavailable(BackendKeychain), ErrPlatformFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, kind := range kinds {
				if got := errors.Is(tt.err, kind); got != (kind == tt.want) {
					t.Errorf("errors.Is(%v, %v) = %v", tt.err, kind, got)
				}
			}
		})
	}
}

func TestPlatformError_Message(t *testing.T) {
	err := &PlatformError{Op: "set", Code: 5, Msg: "access denied"}
	if !strings.Contains(err.Error(), "access denied") || !strings.Contains(err.Error(), "code 5") {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	wrapped := platformErr("get", errors.New("socket closed"))
	if !strings.Contains(wrapped.Error(), "socket closed") {
		t.Errorf("Expected wrapped message, got %s", wrapped.Error())
	}
	if platformErr("get", nil) != nil {
		t.Error("platformErr(nil) should be nil")
	}
	if again := platformErr("other", wrapped); again != wrapped {
		t.Error("platformErr should not double-wrap a PlatformError")
	}
}

func TestSecretError_Message(t *testing.T) {
	tests := []struct {
		err      *SecretError
		contains string
	}{
		{NewSecretError("get", "svc", "alice", ErrNoEntry), "svc:alice"},
		{NewSecretError("find", "svc", "", ErrNoEntry), "service svc"},
		{NewSecretError("select", "", "", ErrNoEntry), "'select' failed"},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.err.Error(), tt.contains) {
			t.Errorf("Expected %q in %q", tt.contains, tt.err.Error())
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewSecretError("get", "s", "u", ErrNoEntry)) {
		t.Error("Expected wrapped ErrNoEntry to be not-found")
	}
	if IsNotFound(&AmbiguousError{Count: 2}) {
		t.Error("Ambiguous is not not-found")
	}
}
