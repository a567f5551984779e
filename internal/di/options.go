package di

import "github.com/savaki/ovhcloud-oauth2/internal/auth"

// CallbackURL is the redirect URI the server registers its callback handler on.
type CallbackURL string

// Option configures the container built by New.
type Option func(*options)

func WithCallbackURL(url string) Option {
	return func(opts *options) {
		opts.callbackURL = CallbackURL(url)
	}
}

// WithDisableAuth registers the NoOp authenticator instead of the OVHcloud one,
// so no client registration is loaded.
func WithDisableAuth(disable bool) Option {
	return func(opts *options) {
		opts.disableAuth = disable
	}
}

// WithEndpoints replaces the shipped region table, e.g. to point a region at
// a local authorization server.
func WithEndpoints(table auth.EndpointTable) Option {
	return func(opts *options) {
		opts.endpoints = table
	}
}

// WithProviders adds constructors to the container. Their parameters are
// resolved from the container.
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	callbackURL CallbackURL
	disableAuth bool
	endpoints   auth.EndpointTable
	providers   []any
}
