package di

import (
	stderrors "errors"
	"testing"

	"github.com/graph-gophers/graphql-go"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/errors"
	"github.com/savaki/ovhcloud-oauth2/internal/services"
)

func setLocalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISABLE_SSM", "true")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	t.Setenv("OVHCLOUD_CLIENT_ID", "mock_client_id")
	t.Setenv("OVHCLOUD_CLIENT_SECRET", "mock_secret")
	t.Setenv("OVHCLOUD_REGION", "ovh-eu")
	t.Setenv("OVHCLOUD_REDIRECT_URI", "")
	t.Setenv("ALLOWED_EMAILS", "a@b.c")
}

func TestContainer_LocalGraph(t *testing.T) {
	setLocalEnv(t)

	container, err := New("dev", WithCallbackURL("http://localhost:8080/oauth/callback"))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	config := MustGet[*services.Config](container)
	if len(config.AllowedEmails) != 1 || config.AllowedEmails[0] != "a@b.c" {
		t.Errorf("AllowedEmails = %v, want [a@b.c]", config.AllowedEmails)
	}

	provider := MustGet[*auth.OvhcloudProvider](container)
	if provider.Region() != "ovh-eu" {
		t.Errorf("Region() = %v, want ovh-eu", provider.Region())
	}
	if got := provider.OAuth2Config().RedirectURL; got != "http://localhost:8080/oauth/callback" {
		t.Errorf("RedirectURL = %v, want the container callback URL", got)
	}

	keys := MustGet[[][]byte](container)
	if len(keys) != 2 {
		t.Errorf("session keys = %d, want a derived pair", len(keys))
	}

	authenticator := MustGet[*auth.Authenticator](container)
	if authenticator.IsNoOp() {
		t.Error("expected a real authenticator")
	}

	if schema := MustGet[*graphql.Schema](container); schema == nil {
		t.Error("expected a GraphQL schema")
	}
}

func TestContainer_DisableAuth(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("OVHCLOUD_CLIENT_ID", "")
	t.Setenv("OVHCLOUD_REGION", "")

	container, err := New("dev", WithDisableAuth(true))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	// no OAuth client configuration is needed when authentication is disabled
	authenticator := MustGet[*auth.Authenticator](container)
	if !authenticator.IsNoOp() {
		t.Error("expected a NoOp authenticator")
	}
	if schema := MustGet[*graphql.Schema](container); schema == nil {
		t.Error("expected a GraphQL schema")
	}
}

func TestContainer_InvalidRegion(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("OVHCLOUD_REGION", "unexisting_endpoint")

	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	err = container.Invoke(func(*auth.OvhcloudProvider) {})
	if err == nil {
		t.Fatal("expected an error for an unknown region")
	}
}

func TestContainer_MissingRegion(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("OVHCLOUD_REGION", "")

	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	err = container.Invoke(func(*auth.OvhcloudProvider) {})
	if !stderrors.Is(err, errors.ErrMissingRegion) {
		t.Fatalf("Invoke() error = %v, want %v", err, errors.ErrMissingRegion)
	}
}
