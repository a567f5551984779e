package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
	"github.com/savaki/ovhcloud-oauth2/internal/errors"
	"golang.org/x/oauth2"
)

// ProviderTypeOvhcloud identifies the OVHcloud provider.
const ProviderTypeOvhcloud = "ovhcloud"

// OvhcloudConfig configures an OvhcloudProvider. Region is one of the
// endpoint table keys, e.g. "ovh-eu"; Scopes defaults to DefaultScopes.
type OvhcloudConfig struct {
	ClientID     string   `json:"client_id" yaml:"client_id"`
	ClientSecret string   `json:"client_secret" yaml:"client_secret"`
	RedirectURI  string   `json:"redirect_uri" yaml:"redirect_uri"`
	Region       string   `json:"region" yaml:"region"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	JWKSURL      string   `json:"jwks_url,omitempty" yaml:"jwks_url,omitempty"` // enables id_token verification
}

// OvhcloudProvider implements the Provider interface for OVHcloud.
type OvhcloudProvider struct {
	endpoint     Endpoint
	region       string
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       []string
	jwksURL      string
}

// NewOvhcloudProvider resolves cfg.Region once; the provider cannot be
// switched to another region afterwards.
func NewOvhcloudProvider(resolver *EndpointResolver, cfg OvhcloudConfig) (*OvhcloudProvider, error) {
	endpoint, err := resolver.Resolve(cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create ovhcloud provider: %w", err)
	}

	scopes := append([]string(nil), cfg.Scopes...)
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	return &OvhcloudProvider{
		endpoint:     endpoint,
		region:       cfg.Region,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		scopes:       scopes,
		jwksURL:      cfg.JWKSURL,
	}, nil
}

// DefaultScopes returns the scopes requested when none are configured.
func DefaultScopes() []string {
	return []string{oidc.ScopeOpenID, "profile", "email", "all"}
}

// ScopeSeparator joins scopes in the authorization URL. OVHcloud only
// accepts a single space.
const ScopeSeparator = " "

// GetProviderType returns "ovhcloud".
func (p *OvhcloudProvider) GetProviderType() string {
	return ProviderTypeOvhcloud
}

// Region returns the region key the provider was created with.
func (p *OvhcloudProvider) Region() string {
	return p.region
}

// Endpoint returns the resolved region endpoint.
func (p *OvhcloudProvider) Endpoint() Endpoint {
	return p.endpoint
}

// Scopes returns a copy of the configured scopes.
func (p *OvhcloudProvider) Scopes() []string {
	return append([]string(nil), p.scopes...)
}

// reservedAuthParams are set by AuthorizationURL and cannot be overridden
// through AuthorizationOptions.Params.
var reservedAuthParams = map[string]bool{
	"client_id":       true,
	"redirect_uri":    true,
	"response_type":   true,
	"state":           true,
	"scope":           true,
	"approval_prompt": true,
}

// AuthorizationURL returns {domain}/auth/oauth2/authorize with the standard
// query parameters. A random state is generated when opts.State is empty.
func (p *OvhcloudProvider) AuthorizationURL(opts AuthorizationOptions) (string, string, error) {
	for key := range opts.Params {
		if reservedAuthParams[key] {
			return "", "", fmt.Errorf("authorization parameter %q cannot be overridden", key)
		}
	}

	state := opts.State
	if state == "" {
		var err error
		if state, err = randomState(); err != nil {
			return "", "", fmt.Errorf("failed to generate state: %w", err)
		}
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = p.scopes
	}

	approvalPrompt := opts.ApprovalPrompt
	if approvalPrompt == "" {
		approvalPrompt = constants.ApprovalPromptAuto
	}

	config := p.OAuth2Config()
	if opts.RedirectURI != "" {
		config.RedirectURL = opts.RedirectURI
	}

	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("scope", strings.Join(scopes, ScopeSeparator)),
		oauth2.SetAuthURLParam("approval_prompt", approvalPrompt),
	}
	for key, values := range opts.Params {
		for _, value := range values {
			authOpts = append(authOpts, oauth2.SetAuthURLParam(key, value))
		}
	}

	return config.AuthCodeURL(state, authOpts...), state, nil
}

// TokenURL returns {domain}/auth/oauth2/token. OVHcloud does not support
// parameters on the token URL, so params is ignored.
func (p *OvhcloudProvider) TokenURL(params url.Values) string {
	return p.endpoint.Domain + constants.TokenPath
}

// UserInfoURL returns {domain}/auth/oauth2/user. The token must be sent as a
// bearer credential by the caller.
func (p *OvhcloudProvider) UserInfoURL(token *oauth2.Token) string {
	return p.endpoint.Domain + constants.UserInfoPath
}

// OAuth2Config returns a new client configuration on every call.
// Client credentials are sent in the request body.
func (p *OvhcloudProvider) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  p.redirectURI,
		Scopes:       p.Scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.endpoint.Domain + constants.AuthorizePath,
			TokenURL:  p.TokenURL(nil),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// IDTokenVerifier checks id_token signatures against the configured JWKS, the
// region domain as issuer and the client id as audience. It returns nil when
// no JWKS URL is configured. Keys are fetched with the HTTP client carried by
// ctx (see oidc.ClientContext).
func (p *OvhcloudProvider) IDTokenVerifier(ctx context.Context) *oidc.IDTokenVerifier {
	if p.jwksURL == "" {
		return nil
	}
	keySet := oidc.NewRemoteKeySet(ctx, p.jwksURL)
	return oidc.NewVerifier(p.endpoint.Domain, keySet, &oidc.Config{ClientID: p.clientID})
}

// NewAPIRequest returns an unauthenticated request to {apiBase}{path}.
func (p *OvhcloudProvider) NewAPIRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.endpoint.APIBase+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// NewAuthenticatedAPIRequest returns a request to {apiBase}{path} carrying
// token as a bearer credential.
func (p *OvhcloudProvider) NewAuthenticatedAPIRequest(ctx context.Context, method, path string, token *oauth2.Token, body io.Reader) (*http.Request, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("failed to create api request: access token is required")
	}
	req, err := p.NewAPIRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	setBearer(req, token)
	return req, nil
}

// ValidateResponse classifies a provider response. A status of 400 or above
// is a ClientError; otherwise an "error" member in the body is an OAuthError.
func (p *OvhcloudProvider) ValidateResponse(resp *http.Response, data map[string]any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return &errors.ClientError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}

	if code, ok := data["error"]; ok && code != nil {
		return &errors.OAuthError{
			StatusCode:  resp.StatusCode,
			Code:        stringValue(code),
			Description: stringValue(data["error_description"]),
			URI:         stringValue(data["error_uri"]),
			Body:        data,
		}
	}

	return nil
}

// NewResourceOwner wraps a user info payload. Individual fields are not checked.
func (p *OvhcloudProvider) NewResourceOwner(data map[string]any) *ResourceOwner {
	return NewResourceOwner(data)
}

// setBearer always sends the "Bearer" scheme, whatever case the token type was issued in.
func setBearer(req *http.Request, token *oauth2.Token) {
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
