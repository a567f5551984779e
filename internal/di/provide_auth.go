package di

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/authz"
	"github.com/savaki/ovhcloud-oauth2/internal/policy"
	"github.com/savaki/ovhcloud-oauth2/internal/services"
)

// ProvideEndpointTable returns custom when set, else the region table shipped
// with the auth package.
func ProvideEndpointTable(custom auth.EndpointTable) auth.EndpointTable {
	if len(custom) > 0 {
		return custom
	}
	return auth.DefaultEndpoints()
}

func ProvideEndpointResolver(table auth.EndpointTable) *auth.EndpointResolver {
	return auth.NewEndpointResolver(table)
}

// ProvideOAuthConfigSource reads the client registration from the environment
// when SSM is disabled, and from Secrets Manager otherwise.
func ProvideOAuthConfigSource(ctx context.Context, store services.ParameterStore, client *secretsmanager.Client, config *services.Config) services.OAuthConfigSource {
	logger := zerolog.Ctx(ctx)

	if envStore, ok := store.(*services.EnvParameterStore); ok {
		logger.Info().Msg("Using environment variables for OAuth client configuration")
		return envStore
	}

	logger.Info().Str("secret_name", config.OAuthSecretName).Msg("Using Secrets Manager for OAuth client configuration")
	return services.NewSecretsManagerService(client, config)
}

func ProvideOAuthConfig(ctx context.Context, source services.OAuthConfigSource) (*auth.OvhcloudConfig, error) {
	oauthConfig, err := source.GetOAuthConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}
	return oauthConfig, nil
}

// ProvideOvhcloudProvider resolves the configured region. The container
// callback URL is used when the client registration has no redirect URI.
func ProvideOvhcloudProvider(ctx context.Context, resolver *auth.EndpointResolver, oauthConfig *auth.OvhcloudConfig, callbackURL CallbackURL) (*auth.OvhcloudProvider, error) {
	cfg := *oauthConfig
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = string(callbackURL)
	}

	provider, err := auth.NewOvhcloudProvider(resolver, cfg)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("region", provider.Region()).
		Str("domain", provider.Endpoint().Domain).
		Str("api_base", provider.Endpoint().APIBase).
		Msg("OVHcloud provider configured")

	return provider, nil
}

func ProvidePolicyValidator(ctx context.Context, config *services.Config) (*policy.Validator, error) {
	validator, err := policy.NewValidator(ctx, policy.Data{
		AllowedEmails:   config.AllowedEmails,
		AllowedSubjects: config.AllowedSubjects,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create policy validator: %w", err)
	}
	return validator, nil
}

func ProvideAuthorizer(ctx context.Context, config *services.Config, validator *policy.Validator) *authz.Authorizer {
	logger := zerolog.Ctx(ctx)

	if len(config.AllowedEmails) == 0 && len(config.AllowedSubjects) == 0 {
		logger.Info().Msg("No allow lists configured - all authenticated OVHcloud accounts allowed")
	} else {
		logger.Info().
			Strs("allowed_emails", config.AllowedEmails).
			Strs("allowed_subjects", config.AllowedSubjects).
			Msg("Account authorization enabled")
	}

	return authz.NewAuthorizer(true,
		&authz.EmailPolicy{AllowedEmails: config.AllowedEmails},
		&authz.RegoPolicy{Validator: validator},
	)
}

func ProvideSessionKeyService(client *secretsmanager.Client, config *services.Config) *services.SessionKeyService {
	return services.NewSessionKeyService(client, config.SessionTokenSecretName)
}

// ProvideSessionKeys returns the state cookie keys. Without SSM the keys are
// derived from the client secret; otherwise they are read from Secrets Manager.
func ProvideSessionKeys(ctx context.Context, store services.ParameterStore, source services.OAuthConfigSource, keyService *services.SessionKeyService) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	if _, ok := store.(*services.EnvParameterStore); ok {
		keys, err := deriveLocalSessionKeys(ctx, source)
		if err != nil {
			logger.Warn().Err(err).Msg("Using ephemeral session key for local development only")
			return [][]byte{}, nil
		}
		logger.Info().Msg("Using session keys derived from the OAuth client secret")
		return keys, nil
	}

	keys, err := keyService.GetSessionKeys(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch session keys from Secrets Manager")

		// Ephemeral keys break the state cookie across Lambda containers
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return nil, fmt.Errorf("session keys required in Lambda environment: %w", err)
		}

		logger.Warn().Msg("Using ephemeral session key for local development only")
		return [][]byte{}, nil
	}
	return keys, nil
}

func deriveLocalSessionKeys(ctx context.Context, source services.OAuthConfigSource) ([][]byte, error) {
	oauthConfig, err := source.GetOAuthConfig(ctx)
	if err != nil {
		return nil, err
	}
	return services.DeriveSessionKeys(oauthConfig.ClientSecret, oauthConfig.ClientID)
}

func ProvideAuthenticator(ctx context.Context, provider *auth.OvhcloudProvider, authorizer *authz.Authorizer, callbackURL CallbackURL, sessionKeys [][]byte) (*auth.Authenticator, error) {
	// In local dev, we need to disable Secure cookie flag since we're on HTTP
	callbackURLStr := string(callbackURL)
	isLocalDev := strings.HasPrefix(callbackURLStr, "http://localhost") ||
		strings.HasPrefix(callbackURLStr, "http://127.0.0.1")

	authenticator, err := auth.NewAuthenticator(ctx, auth.AuthenticatorInput{
		Provider:    provider,
		CallbackURL: callbackURLStr,
		Authorizer:  authorizer,
		SessionKeys: sessionKeys,
		IsLocalDev:  isLocalDev,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	return authenticator, nil
}

func ProvideNoOpAuthenticator(ctx context.Context) *auth.Authenticator {
	zerolog.Ctx(ctx).Warn().Msg("Authentication is DISABLED - using NoOp authenticator (development only)")
	return auth.NewNoOpAuthenticator()
}
