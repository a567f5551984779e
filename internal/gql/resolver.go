package gql

import (
	_ "embed"

	"github.com/graph-gophers/graphql-go"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"go.uber.org/dig"
)

//go:embed schema.graphqls
var schemaString string

type Config struct {
	dig.In

	Endpoints     *auth.EndpointResolver
	Authenticator *auth.Authenticator `optional:"true"`
}

// Resolver is the root GraphQL resolver
type Resolver struct {
	endpoints *auth.EndpointResolver
	region    string // region the server authenticates against, if any
}

// NewResolver creates a new root resolver with the required dependencies
func NewResolver(config Config) *Resolver {
	var region string
	if config.Authenticator != nil && !config.Authenticator.IsNoOp() {
		if p, ok := config.Authenticator.Provider().(interface{ Region() string }); ok {
			region = p.Region()
		}
	}

	return &Resolver{
		endpoints: config.Endpoints,
		region:    region,
	}
}

// NewSchema creates a new GraphQL schema with the root resolver
func NewSchema(resolver *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(schemaString, resolver, graphql.UseFieldResolvers())
}

// Ok returns "ok" for health checks
func (r *Resolver) Ok() string {
	return "ok"
}
