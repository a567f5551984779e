package commands

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/services"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// newEndpointResolver is replaced in tests.
var newEndpointResolver = func() *auth.EndpointResolver {
	return auth.NewEndpointResolver(auth.DefaultEndpoints())
}

// clientFlags configure the OAuth client. Values given on the command line
// override the profile file, which overrides the Secrets Manager secret.
func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "YAML file holding client_id, client_secret, region, redirect_uri and scopes",
			EnvVars: []string{"OVHCLOUD_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "secret",
			Usage:   "AWS Secrets Manager secret holding the client configuration as JSON",
			EnvVars: []string{"OVHCLOUD_SECRET_NAME"},
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "OVHcloud region (ovh-eu, ovh-ca or ovh-us)",
			EnvVars: []string{"OVHCLOUD_REGION"},
		},
		&cli.StringFlag{
			Name:    "client-id",
			Usage:   "OAuth2 client id",
			EnvVars: []string{"OVHCLOUD_CLIENT_ID"},
		},
		&cli.StringFlag{
			Name:    "client-secret",
			Usage:   "OAuth2 client secret",
			EnvVars: []string{"OVHCLOUD_CLIENT_SECRET"},
		},
		&cli.StringFlag{
			Name:    "redirect-uri",
			Usage:   "Redirect URI registered for the client",
			EnvVars: []string{"OVHCLOUD_REDIRECT_URI"},
		},
		&cli.StringSliceFlag{
			Name:  "scope",
			Usage: "Scope to request (repeatable, defaults to openid profile email all)",
		},
	}
}

// LoadProfile reads a YAML client profile.
func LoadProfile(path string) (auth.OvhcloudConfig, error) {
	var profile auth.OvhcloudConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return profile, nil
}

func loadClientConfig(c *cli.Context) (auth.OvhcloudConfig, error) {
	var cfg auth.OvhcloudConfig

	if name := c.String("secret"); name != "" {
		fromSecret, err := loadSecretConfig(c.Context, name)
		if err != nil {
			return cfg, err
		}
		cfg = *fromSecret
	}

	if path := c.String("profile"); path != "" {
		profile, err := LoadProfile(path)
		if err != nil {
			return cfg, err
		}
		merge(&cfg, profile)
	}

	merge(&cfg, auth.OvhcloudConfig{
		ClientID:     c.String("client-id"),
		ClientSecret: c.String("client-secret"),
		RedirectURI:  c.String("redirect-uri"),
		Region:       c.String("region"),
		Scopes:       c.StringSlice("scope"),
	})

	return cfg, nil
}

func loadSecretConfig(ctx context.Context, name string) (*auth.OvhcloudConfig, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	service := services.NewSecretsManagerService(secretsmanager.NewFromConfig(awsConfig), &services.Config{OAuthSecretName: name})
	return service.GetOAuthConfig(ctx)
}

func merge(dst *auth.OvhcloudConfig, src auth.OvhcloudConfig) {
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.ClientSecret != "" {
		dst.ClientSecret = src.ClientSecret
	}
	if src.RedirectURI != "" {
		dst.RedirectURI = src.RedirectURI
	}
	if src.Region != "" {
		dst.Region = src.Region
	}
	if len(src.Scopes) > 0 {
		dst.Scopes = src.Scopes
	}
}

func newProvider(c *cli.Context) (*auth.OvhcloudProvider, error) {
	cfg, err := loadClientConfig(c)
	if err != nil {
		return nil, err
	}
	return auth.NewOvhcloudProvider(newEndpointResolver(), cfg)
}

func newAuthenticator(c *cli.Context) (*auth.Authenticator, error) {
	provider, err := newProvider(c)
	if err != nil {
		return nil, err
	}

	input := auth.AuthenticatorInput{Provider: provider}
	cfg := provider.OAuth2Config()
	if keys, err := services.DeriveSessionKeys(cfg.ClientSecret, cfg.ClientID); err == nil {
		input.SessionKeys = keys
	}
	return auth.NewAuthenticator(c.Context, input)
}
