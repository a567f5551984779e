package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/savaki/ovhcloud-oauth2/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestProvider(t *testing.T, region string) *OvhcloudProvider {
	t.Helper()

	provider, err := NewOvhcloudProvider(NewEndpointResolver(DefaultEndpoints()), OvhcloudConfig{
		ClientID:     "mock_client_id",
		ClientSecret: "mock_secret",
		RedirectURI:  "none",
		Region:       region,
	})
	require.NoError(t, err)
	return provider
}

func TestNewOvhcloudProvider_RegionErrors(t *testing.T) {
	resolver := NewEndpointResolver(DefaultEndpoints())

	_, err := NewOvhcloudProvider(resolver, OvhcloudConfig{ClientID: "id"})
	assert.ErrorIs(t, err, errors.ErrMissingRegion)

	_, err = NewOvhcloudProvider(resolver, OvhcloudConfig{ClientID: "id", Region: "unexisting_endpoint"})
	assert.ErrorIs(t, err, errors.ErrUnknownRegion)

	var regionErr *errors.UnknownRegionError
	require.True(t, stderrors.As(err, &regionErr))
	assert.Equal(t, "unexisting_endpoint", regionErr.Region)
}

func TestOvhcloudProvider_AuthorizationURL(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")

	authURL, state, err := provider.AuthorizationURL(AuthorizationOptions{})
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "www.ovh.com", u.Host)
	assert.Equal(t, "/auth/oauth2/authorize", u.Path)

	query := u.Query()
	for _, key := range []string{"client_id", "redirect_uri", "state", "scope", "response_type", "approval_prompt"} {
		assert.Contains(t, query, key)
	}
	assert.Equal(t, "mock_client_id", query.Get("client_id"))
	assert.Equal(t, "none", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "auto", query.Get("approval_prompt"))
	assert.Equal(t, "openid profile email all", query.Get("scope"))
	assert.Equal(t, state, query.Get("state"))
	assert.Len(t, state, 32)
}

func TestOvhcloudProvider_AuthorizationURLOptions(t *testing.T) {
	provider := newTestProvider(t, "ovh-ca")

	authURL, state, err := provider.AuthorizationURL(AuthorizationOptions{
		State:          "fixed-state",
		RedirectURI:    "https://app.example.com/cb",
		ApprovalPrompt: "force",
		Scopes:         []string{"a", "b"},
		Params:         url.Values{"prompt": {"login"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-state", state)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "ca.ovh.com", u.Host)

	query := u.Query()
	assert.Equal(t, "a b", query.Get("scope"))
	assert.NotContains(t, query.Get("scope"), ",")
	assert.Equal(t, "fixed-state", query.Get("state"))
	assert.Equal(t, "force", query.Get("approval_prompt"))
	assert.Equal(t, "https://app.example.com/cb", query.Get("redirect_uri"))
	assert.Equal(t, "login", query.Get("prompt"))
}

func TestOvhcloudProvider_AuthorizationURLReservedParams(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")

	for _, key := range []string{"client_id", "redirect_uri", "response_type", "state", "scope", "approval_prompt"} {
		t.Run(key, func(t *testing.T) {
			authURL, state, err := provider.AuthorizationURL(AuthorizationOptions{
				Params: url.Values{key: {"x,y"}},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
			assert.Empty(t, authURL)
			assert.Empty(t, state)
		})
	}
}

func TestOvhcloudProvider_StateIsRandom(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")

	_, first, err := provider.AuthorizationURL(AuthorizationOptions{})
	require.NoError(t, err)
	_, second, err := provider.AuthorizationURL(AuthorizationOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestOvhcloudProvider_TokenURL(t *testing.T) {
	provider := newTestProvider(t, "ovh-us")

	for _, params := range []url.Values{nil, {}, {"grant_type": {"authorization_code"}, "code": {"x"}}} {
		u, err := url.Parse(provider.TokenURL(params))
		require.NoError(t, err)
		assert.Equal(t, "/auth/oauth2/token", u.Path)
		assert.Equal(t, "us.ovhcloud.com", u.Host)
		assert.Empty(t, u.RawQuery)
	}
}

func TestOvhcloudProvider_UserInfoURL(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")

	got := provider.UserInfoURL(&oauth2.Token{AccessToken: "mock_access_token"})
	assert.Equal(t, "https://www.ovh.com/auth/oauth2/user", got)
	assert.NotContains(t, got, "mock_access_token")
}

func TestOvhcloudProvider_OAuth2Config(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")

	config := provider.OAuth2Config()
	assert.Equal(t, "https://www.ovh.com/auth/oauth2/authorize", config.Endpoint.AuthURL)
	assert.Equal(t, "https://www.ovh.com/auth/oauth2/token", config.Endpoint.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, config.Endpoint.AuthStyle)

	// callers get their own copy
	config.RedirectURL = "changed"
	config.Scopes[0] = "changed"
	assert.Equal(t, "none", provider.OAuth2Config().RedirectURL)
	assert.Equal(t, DefaultScopes(), provider.Scopes())
}

func TestOvhcloudProvider_ValidateResponse(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")

	tests := []struct {
		name       string
		status     int
		body       map[string]any
		wantClient bool
		wantOAuth  bool
	}{
		{
			name:       "unprocessable entity",
			status:     http.StatusUnprocessableEntity,
			body:       map[string]any{"message": "Validation Failed"},
			wantClient: true,
		},
		{
			name:       "client error wins over error field",
			status:     http.StatusBadRequest,
			body:       map[string]any{"error": "invalid_grant"},
			wantClient: true,
		},
		{
			name:      "error field on success",
			status:    http.StatusOK,
			body:      map[string]any{"error": "bad_verification_code", "error_description": "The code passed is incorrect or expired."},
			wantOAuth: true,
		},
		{
			name:   "null error is ignored",
			status: http.StatusOK,
			body:   map[string]any{"error": nil, "access_token": "x"},
		},
		{
			name:   "success",
			status: http.StatusOK,
			body:   map[string]any{"access_token": "x"},
		},
		{
			name:   "redirect status is not an error",
			status: http.StatusFound,
			body:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Status: http.StatusText(tt.status)}
			err := provider.ValidateResponse(resp, tt.body)

			var clientErr *errors.ClientError
			var oauthErr *errors.OAuthError
			assert.Equal(t, tt.wantClient, stderrors.As(err, &clientErr))
			assert.Equal(t, tt.wantOAuth, stderrors.As(err, &oauthErr))

			if !tt.wantClient && !tt.wantOAuth {
				assert.NoError(t, err)
			}
			if tt.wantClient {
				assert.Equal(t, tt.status, clientErr.StatusCode)
				assert.Equal(t, tt.body, clientErr.Body)
			}
			if tt.wantOAuth {
				assert.Equal(t, tt.body["error"], oauthErr.Code)
				assert.Equal(t, tt.body["error_description"], oauthErr.Description)
			}
		})
	}
}

func TestOvhcloudProvider_APIRequests(t *testing.T) {
	provider := newTestProvider(t, "ovh-eu")
	ctx := context.Background()

	req, err := provider.NewAPIRequest(ctx, http.MethodGet, "/me", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://eu.api.ovh.com/1.0/me", req.URL.String())
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Empty(t, req.Header.Get("Authorization"))

	req, err = provider.NewAuthenticatedAPIRequest(ctx, http.MethodGet, "/me", &oauth2.Token{AccessToken: "mock_access_token", TokenType: "bearer"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://eu.api.ovh.com/1.0/me", req.URL.String())
	assert.Equal(t, "Bearer mock_access_token", req.Header.Get("Authorization"))

	req, err = provider.NewAuthenticatedAPIRequest(ctx, http.MethodPost, "/domain", &oauth2.Token{AccessToken: "t"}, strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://eu.api.ovh.com/1.0/domain", req.URL.String())

	_, err = provider.NewAuthenticatedAPIRequest(ctx, http.MethodGet, "/me", nil, nil)
	assert.Error(t, err)
	_, err = provider.NewAuthenticatedAPIRequest(ctx, http.MethodGet, "/me", &oauth2.Token{}, nil)
	assert.Error(t, err)
}
