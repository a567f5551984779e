package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
	"github.com/savaki/ovhcloud-oauth2/internal/errors"
	"golang.org/x/oauth2"
)

type ownerKey struct{}

// WithResourceOwner returns a copy of ctx carrying owner.
func WithResourceOwner(ctx context.Context, owner *ResourceOwner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner stored by RequireAuth, if any.
func OwnerFromContext(ctx context.Context) (*ResourceOwner, bool) {
	owner, ok := ctx.Value(ownerKey{}).(*ResourceOwner)
	return owner, ok && owner != nil
}

// BearerToken extracts the access token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (*oauth2.Token, bool) {
	header := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	return &oauth2.Token{AccessToken: value, TokenType: "Bearer"}, true
}

// RequireAuth creates middleware that resolves the bearer token of the request
// into a ResourceOwner using the provider user info endpoint.
// If redirectOnFail is true (for document/HTML routes), it redirects to /login when no token is sent.
// If redirectOnFail is false (for API routes), it returns a JSON error response.
func (a *Authenticator) RequireAuth(redirectOnFail bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			// Check if this is a NoOp authenticator (auth disabled)
			if a.IsNoOp() {
				logger.Debug().
					Str("path", r.URL.Path).
					Msg("Authentication BYPASSED (NoOp mode)")
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				logger.Debug().Str("path", r.URL.Path).Msg("No bearer token in request")
				a.handleAuthFailure(w, r, redirectOnFail, http.StatusUnauthorized, "Unauthorized")
				return
			}

			owner, err := a.FetchResourceOwner(r.Context(), token)
			if err != nil {
				var clientErr *errors.ClientError
				switch {
				case stderrors.As(err, &clientErr) && clientErr.StatusCode < http.StatusInternalServerError:
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Bearer token rejected by provider")
					a.handleAuthFailure(w, r, false, http.StatusUnauthorized, "Token expired or invalid")
				case stderrors.Is(err, errors.ErrIdentityProvider), stderrors.Is(err, errors.ErrUnexpectedPayload):
					logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Identity provider error")
					a.handleAuthFailure(w, r, false, http.StatusBadGateway, "Identity provider unavailable")
				default:
					logger.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to fetch resource owner")
					a.handleAuthFailure(w, r, false, http.StatusInternalServerError, "Internal Server Error")
				}
				return
			}

			if err := a.Authorize(r.Context(), owner); err != nil {
				logger.Warn().
					Str("sub", owner.ID()).
					Str("email", owner.Email()).
					Err(err).
					Msg("User authorization failed")
				a.handleAuthFailure(w, r, false, http.StatusForbidden, "Access denied")
				return
			}

			logger.Debug().
				Str("path", r.URL.Path).
				Str("email", owner.Email()).
				Str("sub", owner.ID()).
				Msg("Authenticated request")

			next.ServeHTTP(w, r.WithContext(WithResourceOwner(r.Context(), owner)))
		})
	}
}

// handleAuthFailure handles authentication failures based on the request type
func (a *Authenticator) handleAuthFailure(w http.ResponseWriter, r *http.Request, redirectOnFail bool, status int, message string) {
	logger := zerolog.Ctx(r.Context())

	if redirectOnFail {
		logger.Info().
			Str("path", r.URL.Path).
			Str("reason", message).
			Msg("Redirecting to login")
		http.Redirect(w, r, constants.LoginPath, http.StatusTemporaryRedirect)
		return
	}

	logger.Warn().
		Str("path", r.URL.Path).
		Str("reason", message).
		Int("status", status).
		Msg("API authentication failed")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="ovhcloud"`)
	}
	writeJSONError(w, status, message)
}
