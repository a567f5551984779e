package di

import (
	"testing"

	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"go.uber.org/dig"
)

type tokenStore struct {
	Name string
}

type tokenCache struct {
	Store *tokenStore
	Env   string
}

func TestNew_ProvidesOptions(t *testing.T) {
	container, err := New("test-env",
		WithCallbackURL("http://localhost:8080/oauth/callback"),
		WithEndpoints(auth.EndpointTable{
			"local": {APIBase: "http://localhost:9000/1.0", Domain: "http://localhost:9000"},
		}),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	err = container.Invoke(func(env string, callbackURL CallbackURL, resolver *auth.EndpointResolver) {
		if env != "test-env" {
			t.Errorf("env = %v, want test-env", env)
		}
		if callbackURL != "http://localhost:8080/oauth/callback" {
			t.Errorf("callbackURL = %v", callbackURL)
		}
		if regions := resolver.Regions(); len(regions) != 1 || regions[0] != "local" {
			t.Errorf("Regions() = %v, want [local]", regions)
		}
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
}

func TestNew_DefaultEndpoints(t *testing.T) {
	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	resolver := MustGet[*auth.EndpointResolver](container)
	if got := len(resolver.Regions()); got != 3 {
		t.Errorf("len(Regions()) = %d, want 3", got)
	}
}

func TestNew_DuplicateProvider(t *testing.T) {
	_, err := New("dev",
		WithProviders(
			func() *tokenStore { return &tokenStore{Name: "a"} },
			func() *tokenStore { return &tokenStore{Name: "b"} },
		),
	)
	if err == nil {
		t.Error("New() should return error when providing duplicate types")
	}
}

func TestMustGet(t *testing.T) {
	t.Run("resolves nested dependencies", func(t *testing.T) {
		container, err := New("prod",
			WithProviders(func() *tokenStore { return &tokenStore{Name: "memory"} }),
			WithProviders(func(store *tokenStore, env string) *tokenCache {
				return &tokenCache{Store: store, Env: env}
			}),
		)
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		cache := MustGet[*tokenCache](container)
		if cache.Store.Name != "memory" || cache.Env != "prod" {
			t.Errorf("MustGet() = %+v", cache)
		}
	})

	t.Run("panics when dependency not found", func(t *testing.T) {
		container, err := New("dev")
		if err != nil {
			t.Fatalf("New() unexpected error: %v", err)
		}

		defer func() {
			if r := recover(); r == nil {
				t.Error("MustGet() did not panic")
			}
		}()

		_ = MustGet[*tokenStore](container)
	})
}

func TestContainer_Interface(t *testing.T) {
	var _ Container = (*dig.Container)(nil)
}
