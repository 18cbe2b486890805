package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// ExpiryMargin is subtracted from a token's lifetime when checking expiry.
// A token within this margin of its expiration is treated as expired so it
// gets refreshed before an API call can fail mid-flight.
const ExpiryMargin = 5 * time.Minute

// Token is an access token obtained from the provider's token endpoint.
type Token struct {
	// AccessToken is the opaque credential used on API requests.
	AccessToken string

	// TokenType is normally "Bearer".
	TokenType string

	// ExpiresIn is the token lifetime in seconds as reported by the
	// provider; 0 means the provider did not report an expiry.
	ExpiresIn int

	// RefreshToken is the optional credential for the refresh grant.
	RefreshToken string

	// CreatedAt is the client-observed issuance time. The provider does not
	// return it, so it is stamped when the exchange response arrives.
	CreatedAt time.Time
}

// ExpiresAt returns the absolute expiration time, or the zero time when the
// provider did not report a lifetime.
func (t *Token) ExpiresAt() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpired reports whether the token is expired or within ExpiryMargin of
// expiring. A token with an unknown lifetime never expires: AniList's
// long-lived tokens omit expires_in, and treating them as stale would force
// a browser round trip on every start. Stale tokens surface as 401s and are
// handled by re-authentication instead.
func (t *Token) IsExpired() bool {
	return t.isExpiredAt(time.Now())
}

func (t *Token) isExpiredAt(now time.Time) bool {
	expiresAt := t.ExpiresAt()
	if expiresAt.IsZero() {
		return false
	}
	return now.Add(ExpiryMargin).After(expiresAt)
}

// ToOAuth2Token converts the token for use with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt(),
	}
}

// Credential is the persisted form of an authenticated session, keyed by the
// AniList user id. Only the most recent credential is ever used.
type Credential struct {
	UserID       int
	AccessToken  string
	RefreshToken string

	// ExpiresAt is the absolute expiry; zero when unknown.
	ExpiresAt time.Time

	UpdatedAt time.Time
}

func (c *Credential) isExpiredAt(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(ExpiryMargin).After(c.ExpiresAt)
}

// token reconstructs an in-memory Token from the persisted credential.
func (c *Credential) token(now time.Time) *Token {
	expiresIn := 0
	if !c.ExpiresAt.IsZero() {
		if remaining := c.ExpiresAt.Sub(now); remaining > 0 {
			expiresIn = int(remaining.Seconds())
		}
	}
	return &Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		RefreshToken: c.RefreshToken,
		CreatedAt:    now,
	}
}

// CredentialStore persists the single most-recent user credential. The store
// owns the persisted row exclusively; Manager only ever calls these three
// operations.
type CredentialStore interface {
	SaveAuth(ctx context.Context, cred Credential) error
	GetAuth(ctx context.Context) (*Credential, error)
	ClearAuth(ctx context.Context) error
}
