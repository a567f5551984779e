package commands

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type tokenOutput struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

// ExchangeCommand returns the exchange command trading a code for a token
func ExchangeCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "exchange",
		Usage: "Exchange an authorization code for an access token",
		Description: `Call the token endpoint of the configured region and print the token as JSON.

Examples:
  ovhcloud-oauth2 exchange --profile ovh.yaml --code 1f2e3d`,
		Flags: append(clientFlags(),
			&cli.StringFlag{
				Name:     "code",
				Aliases:  []string{"c"},
				Usage:    "Authorization code received on the redirect URI",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			authenticator, err := newAuthenticator(c)
			if err != nil {
				return err
			}

			token, err := authenticator.Exchange(c.Context, c.String("code"))
			if err != nil {
				return err
			}

			logger.Info().
				Str("token_type", token.TokenType).
				Bool("has_refresh_token", token.RefreshToken != "").
				Msg("Authorization code exchanged")

			out := tokenOutput{
				AccessToken:  token.AccessToken,
				TokenType:    token.TokenType,
				RefreshToken: token.RefreshToken,
			}
			if !token.Expiry.IsZero() {
				expiry := token.Expiry.UTC()
				out.Expiry = &expiry
			}

			encoder := json.NewEncoder(c.App.Writer)
			encoder.SetIndent("", "  ")
			return encoder.Encode(out)
		},
	}
}
