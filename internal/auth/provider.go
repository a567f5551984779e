package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider defines the interface for OAuth2 providers driven by the Authenticator.
// Implementations resolve their endpoints once at construction and hold no
// per-request state, so a single value may serve concurrent logins.
type Provider interface {
	// GetProviderType returns the provider type identifier (e.g., "ovhcloud").
	GetProviderType() string

	// Endpoint returns the endpoint the provider was resolved to.
	Endpoint() Endpoint

	// AuthorizationURL builds the URL the user agent is sent to, and returns
	// the state value embedded in it.
	AuthorizationURL(opts AuthorizationOptions) (authURL, state string, err error)

	// TokenURL returns the access token endpoint.
	TokenURL(params url.Values) string

	// UserInfoURL returns the endpoint describing the owner of token.
	UserInfoURL(token *oauth2.Token) string

	// OAuth2Config returns the generic client configuration for the exchange legs.
	OAuth2Config() *oauth2.Config

	// ValidateResponse inspects a provider response before it is used.
	// data is the parsed response body.
	ValidateResponse(resp *http.Response, data map[string]any) error

	// IDTokenVerifier returns the verifier for id_token values issued with
	// the token, or nil when they are not checked.
	IDTokenVerifier(ctx context.Context) *oidc.IDTokenVerifier

	// NewResourceOwner maps a successful user info payload.
	NewResourceOwner(data map[string]any) *ResourceOwner
}

// AuthorizationOptions customise a single authorization URL.
// Zero values fall back to the provider defaults.
type AuthorizationOptions struct {
	State          string
	RedirectURI    string
	ApprovalPrompt string
	Scopes         []string
	Params         url.Values // extra query parameters
}
