// Package auth implements the OAuth2 authorization-code flow against the
// AniList provider for a desktop client without a public redirect URI.
//
// The flow is the classic loopback-callback dance:
//
//  1. Manager builds an authorization URL carrying a fresh CSRF state and
//     opens it in the user's browser.
//  2. CallbackServer binds the loopback port from the configured redirect
//     URI and captures exactly one redirect, validating the returned state.
//  3. Exchanger trades the authorization code (or later a refresh token)
//     for an access token at the provider's token endpoint.
//  4. The token is attributed to a user via an identity lookup and persisted
//     through the CredentialStore interface.
//
// Manager ties these together and exposes the lifecycle operations consumed
// by the API client: EnsureAuthenticated, Authenticate, Refresh and Logout.
// Keeper owns the in-process token and serializes check-then-refresh so two
// concurrent callers never trigger two refreshes.
//
// SECURITY: state mismatches abort the attempt before any token exchange,
// and token values are never written to logs or error messages.
package auth
