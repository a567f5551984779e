package gql

import (
	"context"
	"sort"

	"github.com/savaki/ovhcloud-oauth2/internal/auth"
)

// Me resolves the owner placed in the request context by auth.RequireAuth.
func (r *Resolver) Me(ctx context.Context) *ResourceOwnerResolver {
	owner, ok := auth.OwnerFromContext(ctx)
	if !ok {
		return nil
	}
	return &ResourceOwnerResolver{owner: owner}
}

type ResourceOwnerResolver struct {
	owner *auth.ResourceOwner
}

type ClaimResolver struct {
	Key   string
	Value string
}

func (r *ResourceOwnerResolver) ID() string        { return r.owner.ID() }
func (r *ResourceOwnerResolver) Nichandle() string { return r.owner.Nichandle() }
func (r *ResourceOwnerResolver) Email() string     { return r.owner.Email() }
func (r *ResourceOwnerResolver) FirstName() string { return r.owner.FirstName() }
func (r *ResourceOwnerResolver) LastName() string  { return r.owner.LastName() }
func (r *ResourceOwnerResolver) Name() string      { return r.owner.Name() }

// Claims lists every user info field, sorted by key.
func (r *ResourceOwnerResolver) Claims() []*ClaimResolver {
	raw := r.owner.ToRaw()
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	claims := make([]*ClaimResolver, 0, len(keys))
	for _, key := range keys {
		claims = append(claims, &ClaimResolver{Key: key, Value: r.owner.String(key)})
	}
	return claims
}
