package provider

import (
	"context"
)

// ExternalIdentity is the normalized result of an external sign-in. It
// contains facts only; account creation and linking decisions belong to
// the authentication service.
type ExternalIdentity struct {
	Provider          string // e.g. "google"
	Email             string // verified email returned by the provider
	EmailVerified     bool   // whether the provider asserts email ownership
	SuggestedUsername string // derived from provider claims, not guaranteed free
}

// OAuthProvider defines the contract every external auth provider must
// implement. Implementations return identity facts only and must not
// perform user creation, linking, or session management.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// AuthCodeURL returns the OAuth authorization URL.
	// State and PKCE parameters are provided by the caller.
	AuthCodeURL(state string, codeChallenge string) string

	// ExchangeCode exchanges the authorization code for provider
	// credentials and returns a normalized identity.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (*ExternalIdentity, error)
}
