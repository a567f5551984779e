package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/caarlos0/env/v11"
	"github.com/savaki/gox/slicex"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	AllowedEmails          []string `env:"ALLOWED_EMAILS" envSeparator:","`
	AllowedSubjects        []string `env:"ALLOWED_SUBJECTS" envSeparator:","`
	OAuthSecretName        string   `env:"OAUTH_SECRET_NAME"`
	SessionTokenSecretName string   `env:"SESSION_TOKEN_SECRET_NAME"`
	CustomDomain           string   `env:"CUSTOM_DOMAIN"`
	APIGatewayID           string   `env:"API_GATEWAY_ID"`
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client *ssm.Client
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all parameters under /{env}/ovhcloud-oauth2.
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/ovhcloud-oauth2", s.env)

	params := make(map[string]string)
	var nextToken *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           &path,
			Recursive:      boolPtr(true),
			WithDecryption: boolPtr(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}

		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		nextToken = result.NextToken
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	param := func(name string) string {
		return params[path+"/"+name]
	}

	config := &Config{
		AllowedEmails:          splitList(param("allowed-emails")),
		AllowedSubjects:        splitList(param("allowed-subjects")),
		OAuthSecretName:        param("oauth-secret-name"),
		SessionTokenSecretName: param("session-token-secret-name"),
		CustomDomain:           param("custom-domain"),
		APIGatewayID:           param("api-gateway-id"),
	}
	config.applyDefaults(s.env)

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env     string
	environ map[string]string // nil reads the process environment
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	if e.environ != nil {
		return e.environ[name], nil
	}
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	var config Config
	if err := env.ParseWithOptions(&config, e.options()); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	config.AllowedEmails = trimList(config.AllowedEmails)
	config.AllowedSubjects = trimList(config.AllowedSubjects)
	config.applyDefaults(e.env)
	return &config, nil
}

// GetOAuthConfig reads the OVHcloud client registration from OVHCLOUD_* variables.
func (e *EnvParameterStore) GetOAuthConfig(ctx context.Context) (*auth.OvhcloudConfig, error) {
	var raw struct {
		ClientID     string   `env:"OVHCLOUD_CLIENT_ID"`
		ClientSecret string   `env:"OVHCLOUD_CLIENT_SECRET"`
		RedirectURI  string   `env:"OVHCLOUD_REDIRECT_URI"`
		Region       string   `env:"OVHCLOUD_REGION"`
		Scopes       []string `env:"OVHCLOUD_SCOPES" envSeparator:" "`
		JWKSURL      string   `env:"OVHCLOUD_JWKS_URL"`
	}
	if err := env.ParseWithOptions(&raw, e.options()); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	oauthConfig := &auth.OvhcloudConfig{
		ClientID:     raw.ClientID,
		ClientSecret: raw.ClientSecret,
		RedirectURI:  raw.RedirectURI,
		Region:       raw.Region,
		Scopes:       trimList(raw.Scopes),
		JWKSURL:      raw.JWKSURL,
	}
	if err := validateOAuthConfig(oauthConfig); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return oauthConfig, nil
}

func (e *EnvParameterStore) options() env.Options {
	return env.Options{Environment: e.environ}
}

func (c *Config) applyDefaults(env string) {
	if c.OAuthSecretName == "" {
		c.OAuthSecretName = fmt.Sprintf("ovhcloud-oauth2/%s/oauth", env)
	}
	if c.SessionTokenSecretName == "" {
		c.SessionTokenSecretName = fmt.Sprintf("ovhcloud-oauth2/%s/session-token", env)
	}
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return trimList(strings.Split(value, ","))
}

func trimList(values []string) []string {
	trimmed := slicex.Map(values, strings.TrimSpace)
	out := trimmed[:0]
	for _, v := range trimmed {
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
