package authz

import (
	"context"
	"testing"

	"github.com/savaki/ovhcloud-oauth2/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		email   string
		wantErr bool
	}{
		{"empty list allows everyone", nil, "a@b.c", false},
		{"exact match", []string{"a@b.c"}, "a@b.c", false},
		{"case insensitive", []string{" A@B.C "}, "a@b.c", false},
		{"not listed", []string{"x@y.z"}, "a@b.c", true},
		{"missing email", []string{"x@y.z"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &EmailPolicy{AllowedEmails: tt.allowed}
			err := p.Authorize(context.Background(), Profile{Email: tt.email})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizer(t *testing.T) {
	ctx := context.Background()
	profile := Profile{Sub: "ab12345-ovh", Email: "a@b.c"}

	var nilAuthorizer *Authorizer
	assert.NoError(t, nilAuthorizer.Authorize(ctx, profile))

	assert.NoError(t, NewEmailAuthorizer(false, "x@y.z").Authorize(ctx, profile))

	err := NewEmailAuthorizer(true, "x@y.z").Authorize(ctx, profile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmailRestriction")

	assert.NoError(t, NewEmailAuthorizer(true, "a@b.c").Authorize(ctx, profile))
}

func TestRegoPolicy(t *testing.T) {
	ctx := context.Background()
	validator, err := policy.NewValidator(ctx, policy.Data{AllowedSubjects: []string{"ab12345-ovh"}})
	require.NoError(t, err)

	authorizer := NewAuthorizer(true, &RegoPolicy{Validator: validator})

	err = authorizer.Authorize(ctx, Profile{Raw: map[string]any{"sub": "ab12345-ovh"}})
	assert.NoError(t, err)

	err = authorizer.Authorize(ctx, Profile{Raw: map[string]any{"sub": "zz999-ovh"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `subject "zz999-ovh" is not allowed`)
}
