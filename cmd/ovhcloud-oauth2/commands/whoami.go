package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Access token",
		EnvVars: []string{"OVHCLOUD_ACCESS_TOKEN"},
	}
}

// WhoAmICommand returns the whoami command printing the owner of a token
func WhoAmICommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the OVHcloud account owning an access token",
		Description: `Call the user info endpoint of the configured region.

Examples:
  ovhcloud-oauth2 whoami --region ovh-eu --token $OVHCLOUD_ACCESS_TOKEN
  ovhcloud-oauth2 whoami --region ovh-eu --raw`,
		Flags: append(clientFlags(),
			tokenFlag(),
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print the full user info payload as JSON",
			},
		),
		Action: func(c *cli.Context) error {
			accessToken := c.String("token")
			if accessToken == "" {
				return fmt.Errorf("an access token is required (--token or OVHCLOUD_ACCESS_TOKEN)")
			}

			authenticator, err := newAuthenticator(c)
			if err != nil {
				return err
			}

			owner, err := authenticator.FetchResourceOwner(c.Context, &oauth2.Token{AccessToken: accessToken})
			if err != nil {
				return err
			}

			logger.Debug().Str("sub", owner.ID()).Msg("Fetched resource owner")

			if c.Bool("raw") {
				encoder := json.NewEncoder(c.App.Writer)
				encoder.SetIndent("", "  ")
				return encoder.Encode(owner)
			}

			fmt.Fprintf(c.App.Writer, "nichandle: %s\n", owner.Nichandle())
			fmt.Fprintf(c.App.Writer, "name:      %s\n", owner.Name())
			fmt.Fprintf(c.App.Writer, "email:     %s\n", owner.Email())
			return nil
		},
	}
}
