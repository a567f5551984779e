package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/ovhcloud-oauth2/internal/policy"
)

// Profile represents user information needed for authorization.
// This mirrors auth.ResourceOwner but keeps packages decoupled.
type Profile struct {
	Sub   string
	Name  string
	Email string
	Raw   map[string]any
}

// Policy defines an authorization rule that can allow or deny access.
type Policy interface {
	// Authorize returns nil if the user is authorized, or an error if denied.
	Authorize(ctx context.Context, profile Profile) error
	// Name returns a human-readable name for this policy.
	Name() string
}

// EmailPolicy restricts access to a fixed list of email addresses.
// Addresses are compared case-insensitively.
type EmailPolicy struct {
	AllowedEmails []string
}

// Name returns the policy name.
func (p *EmailPolicy) Name() string {
	return "EmailRestriction"
}

// Authorize checks the profile email against the allow list.
func (p *EmailPolicy) Authorize(ctx context.Context, profile Profile) error {
	if len(p.AllowedEmails) == 0 {
		return nil
	}
	for _, allowed := range p.AllowedEmails {
		if strings.EqualFold(strings.TrimSpace(allowed), profile.Email) {
			return nil
		}
	}
	return fmt.Errorf("access denied: email %s is not authorized", profile.Email)
}

// RegoPolicy evaluates the raw user info payload with an OPA policy.
type RegoPolicy struct {
	Validator *policy.Validator
}

// Name returns the policy name.
func (p *RegoPolicy) Name() string {
	return "ResourceOwnerPolicy"
}

// Authorize runs the rego policy and reports its violations.
func (p *RegoPolicy) Authorize(ctx context.Context, profile Profile) error {
	result, err := p.Validator.Validate(ctx, profile.Raw)
	if err != nil {
		return fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("access denied: %s", strings.Join(result.Violations, "; "))
	}
	return nil
}

// Authorizer manages a collection of authorization policies.
type Authorizer struct {
	policies []Policy
	enabled  bool
}

// NewAuthorizer creates a new authorizer with the given policies.
func NewAuthorizer(enabled bool, policies ...Policy) *Authorizer {
	return &Authorizer{
		policies: policies,
		enabled:  enabled,
	}
}

// Authorize runs all policies and returns an error if any policy denies access.
func (a *Authorizer) Authorize(ctx context.Context, profile Profile) error {
	if a == nil || !a.enabled {
		return nil
	}

	for _, policy := range a.policies {
		if err := policy.Authorize(ctx, profile); err != nil {
			return fmt.Errorf("authorization policy %s failed: %w", policy.Name(), err)
		}
	}
	return nil
}

// NewEmailAuthorizer creates a preconfigured authorizer for email restrictions.
// This is a convenience function for the common use case.
func NewEmailAuthorizer(enabled bool, allowedEmails ...string) *Authorizer {
	return NewAuthorizer(enabled, &EmailPolicy{
		AllowedEmails: allowedEmails,
	})
}
