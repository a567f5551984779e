package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
	"github.com/urfave/cli/v2"
)

type endpointOutput struct {
	Region       string `json:"region"`
	APIBase      string `json:"api_base"`
	Domain       string `json:"domain"`
	AuthorizeURL string `json:"authorize_url"`
	TokenURL     string `json:"token_url"`
	UserInfoURL  string `json:"user_info_url"`
}

// EndpointsCommand returns the endpoints command listing the region table
func EndpointsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "endpoints",
		Aliases: []string{"e"},
		Usage:   "List OVHcloud regions and their endpoints",
		Description: `List the regions known to this tool, or resolve a single one.

Examples:
  ovhcloud-oauth2 endpoints
  ovhcloud-oauth2 endpoints --region ovh-ca --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Usage:   "Only show this region",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print JSON instead of a table",
			},
		},
		Action: func(c *cli.Context) error {
			resolver := newEndpointResolver()

			regions := resolver.Regions()
			if region := c.String("region"); c.IsSet("region") {
				regions = []string{region}
			}

			var out []endpointOutput
			for _, region := range regions {
				endpoint, err := resolver.Resolve(region)
				if err != nil {
					return err
				}
				out = append(out, newEndpointOutput(region, endpoint))
			}

			logger.Debug().Int("count", len(out)).Msg("Resolved endpoints")

			if c.Bool("json") {
				encoder := json.NewEncoder(c.App.Writer)
				encoder.SetIndent("", "  ")
				return encoder.Encode(out)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REGION\tAPI BASE\tDOMAIN")
			for _, e := range out {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Region, e.APIBase, e.Domain)
			}
			return w.Flush()
		},
	}
}

func newEndpointOutput(region string, endpoint auth.Endpoint) endpointOutput {
	return endpointOutput{
		Region:       region,
		APIBase:      endpoint.APIBase,
		Domain:       endpoint.Domain,
		AuthorizeURL: endpoint.Domain + constants.AuthorizePath,
		TokenURL:     endpoint.Domain + constants.TokenPath,
		UserInfoURL:  endpoint.Domain + constants.UserInfoPath,
	}
}
