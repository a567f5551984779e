package main

import (
	"context"
	"os"

	"github.com/savaki/ovhcloud-oauth2/cmd/ovhcloud-oauth2/commands"
	"github.com/savaki/ovhcloud-oauth2/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "ovhcloud-oauth2",
		Usage: "OVHcloud OAuth2 client toolkit",
		Description: `Drive the OVHcloud OAuth2 authorization code flow from the command line.

This tool provides commands for:
  - Listing the OVHcloud regions and their endpoints
  - Building authorization URLs and exchanging authorization codes
  - Inspecting the owner of an access token and calling the OVHcloud API`,
		Commands: []*cli.Command{
			commands.EndpointsCommand(&logger),
			commands.AuthorizeURLCommand(&logger),
			commands.ExchangeCommand(&logger),
			commands.WhoAmICommand(&logger),
			commands.APICommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
