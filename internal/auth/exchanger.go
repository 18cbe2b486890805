package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// TokenExchanger trades credentials for access tokens at the provider's
// token endpoint.
type TokenExchanger interface {
	// ExchangeCode exchanges an authorization code. redirectURI must match
	// the one used on the authorization request.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error)

	// ExchangeRefresh obtains a new access token using the refresh grant.
	ExchangeRefresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Exchanger is the HTTP implementation of TokenExchanger.
type Exchanger struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// ExchangerOption customizes an Exchanger.
type ExchangerOption func(*Exchanger)

// WithHTTPClient sets a custom HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) ExchangerOption {
	return func(e *Exchanger) { e.httpClient = httpClient }
}

// NewExchanger creates an Exchanger for the configured provider.
func NewExchanger(cfg Config, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		cfg:        cfg.withDefaults(),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exchanger) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	if redirectURI == "" {
		redirectURI = e.cfg.RedirectURI
	}
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {e.cfg.ClientID},
		"client_secret": {e.cfg.ClientSecret},
	}
	return e.doTokenRequest(ctx, "authorization_code", data)
}

func (e *Exchanger) ExchangeRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {e.cfg.ClientID},
		"client_secret": {e.cfg.ClientSecret},
	}
	return e.doTokenRequest(ctx, "refresh_token", data)
}

// tokenResponse is the provider's token endpoint response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (e *Exchanger) doTokenRequest(ctx context.Context, grant string, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &ExchangeError{Grant: grant, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Grant: grant, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Grant: grant, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		// Rate limiting and server-side failures are transient; everything
		// else (invalid code, revoked refresh token) is a hard failure.
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, &ExchangeError{
			Grant:      grant,
			StatusCode: resp.StatusCode,
			Transient:  transient,
			Err:        fmt.Errorf("provider returned status %d", resp.StatusCode),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ExchangeError{Grant: grant, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &ExchangeError{Grant: grant, StatusCode: resp.StatusCode, Err: errors.New("token response carried no access token")}
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tokenType,
		ExpiresIn:    tr.ExpiresIn,
		RefreshToken: tr.RefreshToken,
		CreatedAt:    e.now(),
	}, nil
}
