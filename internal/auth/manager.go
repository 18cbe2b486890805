package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuthState is the lifecycle state of the Manager.
type AuthState int

const (
	// StateUnauthenticated means no usable token is known.
	StateUnauthenticated AuthState = iota

	// StateAuthenticating means a browser authorization flow is in flight.
	StateAuthenticating

	// StateAuthenticated means a valid token is available.
	StateAuthenticated

	// StateRefreshing means a refresh-grant exchange is in flight.
	StateRefreshing

	// StateFailed means the last attempt ended in an error.
	StateFailed
)

// String returns the string representation of the auth state.
func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IdentityResolver attributes an access token to an AniList user id, via an
// authenticated Viewer query.
type IdentityResolver interface {
	ViewerID(ctx context.Context, accessToken string) (int, error)
}

// Manager orchestrates the authorization flow, callback capture, token
// exchange and credential persistence, and exposes the token lifecycle
// operations consumed by the API client.
//
// At most one authorization attempt can be in flight per process: the
// callback listener binds a fixed port, so a concurrent second attempt fails
// with a *BindError rather than interleaving with the first.
type Manager struct {
	mu    sync.RWMutex
	state AuthState

	cfg         Config
	store       CredentialStore
	exchanger   TokenExchanger
	identity    IdentityResolver
	openBrowser func(string) error
	now         func() time.Time
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithExchanger overrides the token exchanger, mainly for tests.
func WithExchanger(exchanger TokenExchanger) ManagerOption {
	return func(m *Manager) { m.exchanger = exchanger }
}

// WithBrowserLauncher overrides how the authorization URL is handed to the
// user. Used by --no-browser and by tests that simulate the redirect.
func WithBrowserLauncher(open func(url string) error) ManagerOption {
	return func(m *Manager) { m.openBrowser = open }
}

// WithClock overrides the time source, for expiry tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager validates cfg and creates a Manager.
func NewManager(cfg Config, store CredentialStore, identity IdentityResolver, opts ...ManagerOption) (*Manager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		state:       StateUnauthenticated,
		cfg:         cfg,
		store:       store,
		identity:    identity,
		openBrowser: OpenBrowser,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.exchanger == nil {
		m.exchanger = NewExchanger(cfg)
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s AuthState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// EnsureAuthenticated returns a valid access token, going to the network
// only when it has to: a stored non-expired credential is returned as-is, an
// expired one with a refresh token is refreshed, and anything else falls
// back to a full browser authentication. Refresh failures are not surfaced;
// they silently fall through to the full flow.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (*Token, error) {
	cred, err := m.store.GetAuth(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	if cred != nil {
		now := m.now()
		if !cred.isExpiredAt(now) {
			m.setState(StateAuthenticated)
			return cred.token(now), nil
		}

		if cred.RefreshToken != "" {
			token, err := m.Refresh(ctx, cred.RefreshToken)
			if err == nil {
				return token, nil
			}
			if token != nil {
				// The exchange itself succeeded; only attribution or
				// persistence failed. Surface that instead of forcing a
				// browser round trip.
				return token, err
			}
			slog.Warn("Token refresh failed, falling back to full authentication",
				"user_id", cred.UserID,
				"error", err.Error(),
			)
		}
	}

	return m.Authenticate(ctx)
}

// Authenticate runs the full browser authorization flow: callback listener,
// authorization URL, code capture with CSRF validation, token exchange,
// identity attribution and persistence.
//
// State mismatch, bind failure and malformed callbacks are terminal for the
// attempt; nothing is retried. When the token was obtained but could not be
// attributed or persisted, the token is returned together with an
// *IdentityError or *PersistenceError.
func (m *Manager) Authenticate(ctx context.Context) (*Token, error) {
	attempt := uuid.NewString()
	m.setState(StateAuthenticating)

	port, path, err := m.cfg.callbackAddr()
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallbackTimeout)
	defer cancel()

	server := NewCallbackServer(port, path)
	boundRedirectURI, err := server.Start(ctx)
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}
	defer server.Stop()

	redirectURI := m.redirectURIFor(server.Port())
	request, err := BuildAuthorizationRequest(m.cfg, redirectURI)
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}

	slog.Debug("Starting browser authorization flow",
		"attempt", attempt,
		"redirect_uri", boundRedirectURI,
	)

	if err := m.openBrowser(request.URL); err != nil {
		slog.Warn("Failed to open browser automatically", "attempt", attempt, "error", err.Error())
		fmt.Printf("Open this URL in your browser to sign in:\n%s\n", request.URL)
	}

	code, err := server.WaitForCallback(ctx, request.State)
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}

	token, err := m.exchanger.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}

	userID, err := m.identity.ViewerID(ctx, token.AccessToken)
	if err != nil {
		// A token that cannot be attributed to a user is not persisted, but
		// it is still handed back for use in the current session.
		m.setState(StateFailed)
		return token, &IdentityError{Err: err}
	}

	if err := m.persist(ctx, userID, token); err != nil {
		m.setState(StateAuthenticated)
		return token, err
	}

	slog.Debug("Browser authorization flow completed", "attempt", attempt, "user_id", userID)
	m.setState(StateAuthenticated)
	return token, nil
}

// Refresh exchanges the refresh token for a new access token and persists
// it. The user id is taken from the stored credential when present and
// resolved over the API otherwise.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	m.setState(StateRefreshing)

	token, err := m.exchanger.ExchangeRefresh(ctx, refreshToken)
	if err != nil {
		m.setState(StateFailed)
		return nil, err
	}

	// Some providers rotate refresh tokens, some omit them on refresh.
	// Keep the old one when the response carried none.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	userID := 0
	if cred, err := m.store.GetAuth(ctx); err == nil && cred != nil {
		userID = cred.UserID
	}
	if userID == 0 {
		userID, err = m.identity.ViewerID(ctx, token.AccessToken)
		if err != nil {
			m.setState(StateFailed)
			return token, &IdentityError{Err: err}
		}
	}

	if err := m.persist(ctx, userID, token); err != nil {
		m.setState(StateAuthenticated)
		return token, err
	}

	m.setState(StateAuthenticated)
	return token, nil
}

// Logout clears the persisted credential. No network call is made; the
// provider-side session is untouched.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.ClearAuth(ctx); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	m.setState(StateUnauthenticated)
	return nil
}

func (m *Manager) persist(ctx context.Context, userID int, token *Token) error {
	cred := Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt(),
		UpdatedAt:    m.now(),
	}
	if err := m.store.SaveAuth(ctx, cred); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// redirectURIFor rewrites the configured redirect URI with the bound port.
// A no-op for fixed ports; for ephemeral-port tests it makes the authorize
// and exchange requests agree with the listener.
func (m *Manager) redirectURIFor(boundPort int) string {
	u, err := url.Parse(m.cfg.RedirectURI)
	if err != nil {
		return m.cfg.RedirectURI
	}
	u.Host = u.Hostname() + ":" + strconv.Itoa(boundPort)
	return u.String()
}
