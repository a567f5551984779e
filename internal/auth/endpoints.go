package auth

import (
	"sort"
	"strings"

	"github.com/savaki/ovhcloud-oauth2/internal/errors"
)

// Endpoint holds the two base URLs of an OVHcloud region.
type Endpoint struct {
	APIBase string `json:"api_base"` // REST API base, no trailing slash
	Domain  string `json:"domain"`   // authorization, token and user info host
}

// EndpointTable maps a region key to its endpoint.
type EndpointTable map[string]Endpoint

// DefaultEndpoints returns a fresh copy of the regions shipped with this package.
func DefaultEndpoints() EndpointTable {
	return EndpointTable{
		"ovh-eu": {
			APIBase: "https://eu.api.ovh.com/1.0",
			Domain:  "https://www.ovh.com",
		},
		"ovh-ca": {
			APIBase: "https://ca.api.ovh.com/1.0",
			Domain:  "https://ca.ovh.com",
		},
		"ovh-us": {
			APIBase: "https://api.us.ovhcloud.com/1.0",
			Domain:  "https://us.ovhcloud.com",
		},
	}
}

// EndpointResolver resolves region keys against an immutable endpoint table.
// The table is copied on construction so later changes to the caller's map
// are not observed.
type EndpointResolver struct {
	table EndpointTable
}

// NewEndpointResolver creates a resolver over a copy of table.
func NewEndpointResolver(table EndpointTable) *EndpointResolver {
	copied := make(EndpointTable, len(table))
	for region, endpoint := range table {
		copied[region] = Endpoint{
			APIBase: strings.TrimRight(endpoint.APIBase, "/"),
			Domain:  strings.TrimRight(endpoint.Domain, "/"),
		}
	}
	return &EndpointResolver{table: copied}
}

// Resolve returns the endpoint of region. Only the empty key is missing; a
// blank key is an unknown region.
func (r *EndpointResolver) Resolve(region string) (Endpoint, error) {
	if region == "" {
		return Endpoint{}, errors.ErrMissingRegion
	}
	endpoint, ok := r.table[region]
	if !ok {
		return Endpoint{}, &errors.UnknownRegionError{Region: region}
	}
	return endpoint, nil
}

// Regions returns the known region keys in lexical order.
func (r *EndpointResolver) Regions() []string {
	regions := make([]string, 0, len(r.table))
	for region := range r.table {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}
