package cli

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAuthRequiredError(t *testing.T) {
	err := &AuthRequiredError{}
	if !strings.Contains(err.Error(), "anitrack auth login") {
		t.Error("message should tell the user how to authenticate")
	}

	wrapped := fmt.Errorf("list: %w", err)
	if !errors.Is(wrapped, &AuthRequiredError{}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestAuthFailedError(t *testing.T) {
	cause := errors.New("state mismatch")
	err := &AuthFailedError{Reason: cause}

	if !strings.Contains(err.Error(), "state mismatch") {
		t.Error("message should include the underlying reason")
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the underlying error")
	}
	if !errors.Is(fmt.Errorf("wrap: %w", err), &AuthFailedError{}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestOfflineError(t *testing.T) {
	err := &OfflineError{Operation: "search"}
	if !strings.Contains(err.Error(), "search") {
		t.Error("message should name the operation")
	}
	if !errors.Is(err, &OfflineError{}) {
		t.Error("errors.Is should match by type")
	}
}
