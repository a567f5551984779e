package services

import (
	"context"
	"testing"

	"github.com/savaki/ovhcloud-oauth2/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretsManagerService_GetOAuthConfig(t *testing.T) {
	fake := &fakeAWS{secrets: map[string]string{
		"ovhcloud-oauth2/dev/oauth": `{
			"client_id": "mock_client_id",
			"client_secret": "mock_secret",
			"region": "ovh-eu",
			"redirect_uri": "https://app.example.com/oauth/callback",
			"scopes": ["openid", "all"]
		}`,
		"ovhcloud-oauth2/dev/incomplete": `{"client_id": "mock_client_id"}`,
		"ovhcloud-oauth2/dev/garbage":    `not json`,
	}}
	client := newFakeSecretsManager(t, fake)
	ctx := context.Background()

	t.Run("loads config", func(t *testing.T) {
		service := NewSecretsManagerService(client, &Config{OAuthSecretName: "ovhcloud-oauth2/dev/oauth"})

		got, err := service.GetOAuthConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, "mock_client_id", got.ClientID)
		assert.Equal(t, "mock_secret", got.ClientSecret)
		assert.Equal(t, "ovh-eu", got.Region)
		assert.Equal(t, "https://app.example.com/oauth/callback", got.RedirectURI)
		assert.Equal(t, []string{"openid", "all"}, got.Scopes)
	})

	t.Run("missing secret", func(t *testing.T) {
		service := NewSecretsManagerService(client, &Config{OAuthSecretName: "ovhcloud-oauth2/dev/missing"})

		_, err := service.GetOAuthConfig(ctx)
		assert.ErrorIs(t, err, errors.ErrSecretNotFound)
	})

	t.Run("incomplete secret", func(t *testing.T) {
		service := NewSecretsManagerService(client, &Config{OAuthSecretName: "ovhcloud-oauth2/dev/incomplete"})

		_, err := service.GetOAuthConfig(ctx)
		require.ErrorIs(t, err, errors.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "missing client_secret")
		assert.NotContains(t, err.Error(), "region")
	})

	t.Run("malformed secret", func(t *testing.T) {
		service := NewSecretsManagerService(client, &Config{OAuthSecretName: "ovhcloud-oauth2/dev/garbage"})

		_, err := service.GetOAuthConfig(ctx)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, errors.ErrSecretNotFound)
	})
}
