package gql

import (
	"context"

	"github.com/savaki/gox/slicex"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
)

// RegionResolver exposes one entry of the endpoint table.
type RegionResolver struct {
	key      string
	endpoint auth.Endpoint
	current  bool
}

// Regions resolves the regions query
func (r *Resolver) Regions(ctx context.Context) []*RegionResolver {
	return slicex.Map(r.endpoints.Regions(), func(key string) *RegionResolver {
		endpoint, _ := r.endpoints.Resolve(key)
		return r.newRegion(key, endpoint)
	})
}

// Region resolves the region query
func (r *Resolver) Region(ctx context.Context, args struct{ Key string }) (*RegionResolver, error) {
	endpoint, err := r.endpoints.Resolve(args.Key)
	if err != nil {
		return nil, err
	}
	return r.newRegion(args.Key, endpoint), nil
}

func (r *Resolver) newRegion(key string, endpoint auth.Endpoint) *RegionResolver {
	return &RegionResolver{
		key:      key,
		endpoint: endpoint,
		current:  r.region != "" && r.region == key,
	}
}

func (r *RegionResolver) Key() string          { return r.key }
func (r *RegionResolver) APIBase() string      { return r.endpoint.APIBase }
func (r *RegionResolver) Domain() string       { return r.endpoint.Domain }
func (r *RegionResolver) AuthorizeURL() string { return r.endpoint.Domain + constants.AuthorizePath }
func (r *RegionResolver) TokenURL() string     { return r.endpoint.Domain + constants.TokenPath }
func (r *RegionResolver) UserInfoURL() string  { return r.endpoint.Domain + constants.UserInfoPath }
func (r *RegionResolver) Current() bool        { return r.current }
