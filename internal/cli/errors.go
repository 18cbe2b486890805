// Package cli defines error types shared between commands. The root command
// maps them to semantic exit codes for scripting.
package cli

import "fmt"

// AuthRequiredError indicates authentication is needed.
// Implements error with actionable guidance.
type AuthRequiredError struct{}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthRequiredError) Error() string {
	return `Authentication required

To authenticate, run:
  anitrack auth login

To check current authentication status:
  anitrack auth status`
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthFailedError indicates the OAuth flow failed.
type AuthFailedError struct {
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed: %v

To retry authentication, run:
  anitrack auth login`, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// OfflineError indicates a command needs the network but the application is
// running in offline mode.
type OfflineError struct {
	// Operation names what was attempted.
	Operation string
}

func (e *OfflineError) Error() string {
	return fmt.Sprintf("%s is unavailable in offline mode", e.Operation)
}

// Is allows errors.Is() to work with wrapped errors.
func (e *OfflineError) Is(target error) bool {
	_, ok := target.(*OfflineError)
	return ok
}
