package auth

import (
	"errors"
	"fmt"
)

// ErrStateMismatch is returned when the state parameter on the callback does
// not match the one embedded in the authorization URL. This is the CSRF
// abort condition: the attempt must stop before any token exchange.
var ErrStateMismatch = errors.New("authorization state mismatch")

// ErrCallbackTimeout is returned when no callback arrives within the
// configured window.
var ErrCallbackTimeout = errors.New("timed out waiting for authorization callback")

// ErrMalformedCallback is returned when the callback request cannot be
// interpreted as an OAuth2 redirect.
var ErrMalformedCallback = errors.New("malformed authorization callback")

// BindError indicates the callback listener could not bind its loopback
// address, typically because a previous attempt's listener is still holding
// the port or another local process owns it.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind callback listener on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// MissingParameterError indicates the callback arrived without a required
// query parameter (code or state).
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("authorization callback is missing the %q parameter", e.Name)
}

// AuthorizationError is a denial reported by the provider on the callback
// via the error/error_description parameters.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}

// ExchangeError indicates a failed request to the provider's token endpoint.
// Transient is set for rate limiting and 5xx responses so callers can tell
// retryable conditions from hard failures; Manager itself never retries and
// falls back to a full re-authentication instead.
type ExchangeError struct {
	// Grant is the OAuth2 grant type that failed ("authorization_code" or
	// "refresh_token").
	Grant string

	// StatusCode is the HTTP status of the response, 0 for transport errors.
	StatusCode int

	Transient bool
	Err       error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange (%s) failed with status %d", e.Grant, e.StatusCode)
	}
	return fmt.Sprintf("token exchange (%s) failed: %v", e.Grant, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a token exchange failure worth
// retrying (rate limiting or a 5xx from the provider).
func IsTransient(err error) bool {
	var exchangeErr *ExchangeError
	return errors.As(err, &exchangeErr) && exchangeErr.Transient
}

// IdentityError indicates a freshly obtained token could not be attributed
// to a user id. The token is not persisted in that case, but it is still
// returned to the caller alongside this error.
type IdentityError struct {
	Err error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("failed to resolve user identity: %v", e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }

// PersistenceError indicates the credential store failed. When it follows a
// successful exchange the returned token is still usable for the current
// session; it just will not survive a restart.
type PersistenceError struct {
	// Op is the store operation that failed: "load", "save" or "clear".
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigError indicates invalid authentication configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid auth configuration: %s: %s", e.Field, e.Reason)
}
