package commands

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
	"github.com/urfave/cli/v2"
)

// AuthorizeURLCommand returns the authorize-url command
func AuthorizeURLCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "authorize-url",
		Aliases: []string{"url"},
		Usage:   "Print the authorization URL to open in a browser",
		Description: `Build the URL that starts the authorization code flow. The state is
printed on the second line; a random one is generated unless --state is given.

Examples:
  ovhcloud-oauth2 authorize-url --region ovh-eu --client-id abc --redirect-uri https://app.example.com/cb
  ovhcloud-oauth2 authorize-url --profile ovh.yaml --scope openid --scope all --param prompt=login`,
		Flags: append(clientFlags(),
			&cli.StringFlag{
				Name:  "state",
				Usage: "State value (random when omitted)",
			},
			&cli.StringFlag{
				Name:  "approval-prompt",
				Usage: "approval_prompt value",
				Value: constants.ApprovalPromptAuto,
			},
			&cli.StringSliceFlag{
				Name:  "param",
				Usage: "Extra query parameter as key=value (repeatable)",
			},
		),
		Action: func(c *cli.Context) error {
			provider, err := newProvider(c)
			if err != nil {
				return err
			}

			params := url.Values{}
			for _, kv := range c.StringSlice("param") {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid --param %q, expected key=value", kv)
				}
				params.Add(key, value)
			}

			authURL, state, err := provider.AuthorizationURL(auth.AuthorizationOptions{
				State:          c.String("state"),
				ApprovalPrompt: c.String("approval-prompt"),
				Params:         params,
			})
			if err != nil {
				return err
			}

			logger.Debug().Str("region", provider.Region()).Msg("Built authorization URL")

			fmt.Fprintln(c.App.Writer, authURL)
			fmt.Fprintln(c.App.Writer, state)
			return nil
		},
	}
}
