package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/errors"
)

// OAuthConfigSource loads the OVHcloud client registration.
type OAuthConfigSource interface {
	GetOAuthConfig(ctx context.Context) (*auth.OvhcloudConfig, error)
}

type SecretsManagerService struct {
	client     *secretsmanager.Client
	secretName string
}

// NewSecretsManagerService reads the OAuth client registration from the secret
// named by config.OAuthSecretName.
func NewSecretsManagerService(client *secretsmanager.Client, config *Config) *SecretsManagerService {
	return &SecretsManagerService{
		client:     client,
		secretName: config.OAuthSecretName,
	}
}

// GetOAuthConfig retrieves the OVHcloud client registration from AWS Secrets Manager.
// The secret holds a JSON object with client_id, client_secret, region,
// redirect_uri and an optional scopes array.
func (s *SecretsManagerService) GetOAuthConfig(ctx context.Context) (*auth.OvhcloudConfig, error) {
	value, err := s.GetSecret(ctx, s.secretName)
	if err != nil {
		return nil, err
	}

	var oauthConfig auth.OvhcloudConfig
	if err := json.Unmarshal([]byte(value), &oauthConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OAuth config: %w", err)
	}

	if err := validateOAuthConfig(&oauthConfig); err != nil {
		return nil, fmt.Errorf("secret %s: %w", s.secretName, err)
	}

	return &oauthConfig, nil
}

// GetSecret retrieves a secret value by path from AWS Secrets Manager
func (s *SecretsManagerService) GetSecret(ctx context.Context, secretPath string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		var apiErr smithy.APIError
		if stderrors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("%w: %s", errors.ErrSecretNotFound, secretPath)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", secretPath, err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretPath)
	}

	return *result.SecretString, nil
}

// validateOAuthConfig checks the client credentials. The region is left to
// the endpoint resolver so a missing one reports errors.ErrMissingRegion.
func validateOAuthConfig(c *auth.OvhcloudConfig) error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errors.ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}
