package commands

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

// APICommand returns the api command calling the OVHcloud REST API
func APICommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "api",
		Usage:     "Call the OVHcloud API of the configured region",
		ArgsUsage: "METHOD PATH",
		Description: `Send a request to {apiBase}{PATH}. The access token is sent as a bearer
credential when given; otherwise the request is unauthenticated.

Examples:
  ovhcloud-oauth2 api --region ovh-eu --token $OVHCLOUD_ACCESS_TOKEN GET /me
  ovhcloud-oauth2 api --region ovh-ca GET /auth/time`,
		Flags: append(clientFlags(),
			tokenFlag(),
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "JSON request body",
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected METHOD PATH, got %d arguments", c.NArg())
			}
			method := strings.ToUpper(c.Args().Get(0))
			path := c.Args().Get(1)
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			provider, err := newProvider(c)
			if err != nil {
				return err
			}

			var body io.Reader
			if data := c.String("data"); data != "" {
				body = strings.NewReader(data)
			}

			var req *http.Request
			if accessToken := c.String("token"); accessToken != "" {
				req, err = provider.NewAuthenticatedAPIRequest(c.Context, method, path, &oauth2.Token{AccessToken: accessToken}, body)
			} else {
				req, err = provider.NewAPIRequest(c.Context, method, path, body)
			}
			if err != nil {
				return err
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := auth.NewValidatingClient(provider, nil).Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			logger.Debug().
				Str("method", method).
				Str("url", req.URL.String()).
				Int("status", resp.StatusCode).
				Msg("API request completed")

			var out bytes.Buffer
			if _, err := io.Copy(&out, resp.Body); err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			fmt.Fprintln(c.App.Writer, strings.TrimSpace(out.String()))
			return nil
		},
	}
}
