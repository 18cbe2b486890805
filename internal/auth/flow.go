package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AniList OAuth2 endpoints.
const (
	DefaultAuthorizeEndpoint = "https://anilist.co/api/v2/oauth/authorize"
	DefaultTokenEndpoint     = "https://anilist.co/api/v2/oauth/token"
)

// DefaultCallbackTimeout bounds how long an authentication attempt waits for
// the browser redirect before tearing the listener down.
const DefaultCallbackTimeout = 5 * time.Minute

// Config holds the immutable OAuth2 client configuration. It is validated
// once when the Manager is created and never mutated afterwards.
type Config struct {
	ClientID     string
	ClientSecret string

	// RedirectURI must be an absolute loopback URL with an explicit port;
	// its port is the one the callback listener binds. Port 0 selects an
	// ephemeral port, which is how tests run hermetically.
	RedirectURI string

	// AuthorizeEndpoint and TokenEndpoint default to the AniList provider.
	AuthorizeEndpoint string
	TokenEndpoint     string

	// Scopes requested on the authorization URL.
	Scopes []string

	// CallbackTimeout defaults to DefaultCallbackTimeout.
	CallbackTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthorizeEndpoint == "" {
		c.AuthorizeEndpoint = DefaultAuthorizeEndpoint
	}
	if c.TokenEndpoint == "" {
		c.TokenEndpoint = DefaultTokenEndpoint
	}
	if c.Scopes == nil {
		c.Scopes = []string{"read", "write"}
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = DefaultCallbackTimeout
	}
	return c
}

// Validate checks the configuration, returning a *ConfigError describing the
// first problem found.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return &ConfigError{Field: "client_id", Reason: "must not be empty"}
	}
	if c.ClientSecret == "" {
		return &ConfigError{Field: "client_secret", Reason: "must not be empty"}
	}
	if _, _, err := c.callbackAddr(); err != nil {
		return err
	}
	return nil
}

// callbackAddr extracts the listener port and callback path from the
// redirect URI.
func (c Config) callbackAddr() (port int, path string, err error) {
	u, parseErr := url.Parse(c.RedirectURI)
	if parseErr != nil || !u.IsAbs() || u.Host == "" {
		return 0, "", &ConfigError{Field: "redirect_uri", Reason: "must be an absolute URL"}
	}
	if u.Scheme != "http" {
		return 0, "", &ConfigError{Field: "redirect_uri", Reason: "must use the http scheme for the loopback callback"}
	}
	portStr := u.Port()
	if portStr == "" {
		return 0, "", &ConfigError{Field: "redirect_uri", Reason: "must carry an explicit port matching the callback listener"}
	}
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil || port < 0 || port > 65535 {
		return 0, "", &ConfigError{Field: "redirect_uri", Reason: fmt.Sprintf("invalid port %q", portStr)}
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return port, path, nil
}

// AuthorizationRequest is a provider authorization URL together with the
// CSRF state embedded in it. The state is single-use: it lives for one
// authentication attempt and is discarded whether or not the exchange
// succeeds.
type AuthorizationRequest struct {
	URL   string
	State string
}

// BuildAuthorizationRequest constructs the authorization URL for the given
// configuration with a fresh CSRF state. redirectURI overrides the
// configured one when the callback listener bound an ephemeral port; pass ""
// to use cfg.RedirectURI.
func BuildAuthorizationRequest(cfg Config, redirectURI string) (*AuthorizationRequest, error) {
	cfg = cfg.withDefaults()
	if redirectURI == "" {
		redirectURI = cfg.RedirectURI
	}

	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	authURL, err := url.Parse(cfg.AuthorizeEndpoint)
	if err != nil {
		return nil, &ConfigError{Field: "authorize_endpoint", Reason: err.Error()}
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", cfg.ClientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	if len(cfg.Scopes) > 0 {
		query.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	authURL.RawQuery = query.Encode()

	return &AuthorizationRequest{URL: authURL.String(), State: state}, nil
}

// GenerateState generates the random state parameter that links the
// authorization response back to the request that initiated it.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
