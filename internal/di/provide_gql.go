package di

import (
	"context"
	"fmt"

	"github.com/graph-gophers/graphql-go"
	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/gql"
)

// ProvideGraphQL builds the query schema. The authenticator in config is
// optional; without one `me` is always null.
func ProvideGraphQL(ctx context.Context, config gql.Config) (*graphql.Schema, error) {
	schema, err := gql.NewSchema(gql.NewResolver(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	authenticated := config.Authenticator != nil && !config.Authenticator.IsNoOp()
	zerolog.Ctx(ctx).Info().
		Bool("authenticated", authenticated).
		Int("region_count", len(config.Endpoints.Regions())).
		Msg("GraphQL schema ready")

	return schema, nil
}
