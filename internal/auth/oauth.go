package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/authz"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
	"github.com/savaki/ovhcloud-oauth2/internal/errors"
	"golang.org/x/oauth2"
)

const (
	sessionName = "auth-session"
	stateKey    = "state"
	stateMaxAge = 10 * 60 // seconds
)

// Authenticator drives the authorization code flow for any Provider. Token and
// user info responses are validated by the provider before they are used.
type Authenticator struct {
	provider     Provider
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	sessionStore *sessions.CookieStore
	callbackURL  string
	authorizer   *authz.Authorizer // optional authorization policy enforcement
	verifier     *oidc.IDTokenVerifier
}

type AuthenticatorInput struct {
	Provider    Provider
	CallbackURL string // overrides the provider redirect URI when set
	Authorizer  *authz.Authorizer
	SessionKeys [][]byte
	HTTPClient  *http.Client // defaults to http.DefaultClient
	IsLocalDev  bool         // Set to true for local development (disables Secure cookie flag)

	// IDTokenVerifier overrides Provider.IDTokenVerifier.
	IDTokenVerifier *oidc.IDTokenVerifier
}

// CallbackResponse is written by HandleCallback after a successful login.
type CallbackResponse struct {
	Provider     string         `json:"provider"`
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	Expiry       *time.Time     `json:"expiry,omitempty"`
	Profile      *ResourceOwner `json:"profile"`
}

func NewAuthenticator(ctx context.Context, input AuthenticatorInput) (*Authenticator, error) {
	if input.Provider == nil {
		return nil, fmt.Errorf("failed to create authenticator: provider is required")
	}

	logger := zerolog.Ctx(ctx)

	oauth2Config := input.Provider.OAuth2Config()
	if input.CallbackURL != "" {
		oauth2Config.RedirectURL = input.CallbackURL
	}

	logger.Info().
		Str("provider_type", input.Provider.GetProviderType()).
		Str("auth_url", oauth2Config.Endpoint.AuthURL).
		Str("token_url", oauth2Config.Endpoint.TokenURL).
		Str("redirect_url", oauth2Config.RedirectURL).
		Msg("OAuth endpoints configured")

	// Use provided session keys (supports rotation - multiple valid keys)
	// If no keys provided, generate a fallback key (for local dev)
	sessionKeys := input.SessionKeys
	if len(sessionKeys) == 0 {
		logger.Warn().Msg("No session keys provided, generating ephemeral fallback key")
		fallbackKey := make([]byte, 32)
		if _, err := rand.Read(fallbackKey); err != nil {
			return nil, fmt.Errorf("failed to generate fallback session key: %w", err)
		}
		sessionKeys = [][]byte{fallbackKey}
	}

	// gorilla/sessions encrypts with the first key and tries all keys when decoding
	sessionStore := sessions.NewCookieStore(sessionKeys...)

	// For local dev on http://localhost, Secure must be false or cookies won't work
	isSecure := !input.IsLocalDev

	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info().
		Int("session_key_count", len(sessionKeys)).
		Str("provider_type", input.Provider.GetProviderType()).
		Bool("secure_cookies", isSecure).
		Msg("Authenticator initialized")

	verifier := input.IDTokenVerifier
	if verifier == nil {
		keyClient := input.HTTPClient
		if keyClient == nil {
			keyClient = http.DefaultClient
		}
		verifier = input.Provider.IDTokenVerifier(oidc.ClientContext(context.WithoutCancel(ctx), keyClient))
	}
	if verifier == nil {
		logger.Info().Msg("No JWKS configured, id_token values are not verified")
	}

	return &Authenticator{
		provider:     input.Provider,
		oauth2Config: oauth2Config,
		httpClient:   NewValidatingClient(input.Provider, input.HTTPClient),
		sessionStore: sessionStore,
		callbackURL:  oauth2Config.RedirectURL,
		authorizer:   input.Authorizer,
		verifier:     verifier,
	}, nil
}

// NewValidatingClient returns a copy of base whose responses are checked with
// provider.ValidateResponse. A rejected response is returned as an error.
func NewValidatingClient(provider Provider, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client := *base
	client.Transport = &validatingTransport{
		provider: provider,
		base:     transport,
	}
	return &client
}

// Provider returns the provider driven by the authenticator.
func (a *Authenticator) Provider() Provider {
	return a.provider
}

// AuthorizationURL returns the URL the user agent is sent to along with the
// state it carries.
func (a *Authenticator) AuthorizationURL(opts AuthorizationOptions) (string, string, error) {
	if opts.RedirectURI == "" {
		opts.RedirectURI = a.callbackURL
	}
	return a.provider.AuthorizationURL(opts)
}

// Exchange trades an authorization code for an access token. Provider
// rejections are returned as *errors.ClientError or *errors.OAuthError.
func (a *Authenticator) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	token, err := a.oauth2Config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, unwrapTransportError(err)
	}

	if _, err := a.VerifyIDToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// VerifyIDToken checks the id_token returned with token. It returns nil, nil
// when the token carries no id_token or no verifier is configured.
func (a *Authenticator) VerifyIDToken(ctx context.Context, token *oauth2.Token) (*oidc.IDToken, error) {
	rawIDToken, _ := token.Extra("id_token").(string)
	if a.verifier == nil || rawIDToken == "" {
		return nil, nil
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidIDToken, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("issuer", idToken.Issuer).
		Str("subject", idToken.Subject).
		Msg("ID token verified")
	return idToken, nil
}

// FetchResourceOwner retrieves the owner of token from the user info endpoint.
func (a *Authenticator) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*ResourceOwner, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("failed to fetch resource owner: access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.provider.UserInfoURL(token), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	setBearer(req, token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, unwrapTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	data, err := ParseResponseBody(resp, body)
	if err != nil {
		return nil, err
	}
	return a.provider.NewResourceOwner(data), nil
}

// Authorize applies the configured policies to owner.
func (a *Authenticator) Authorize(ctx context.Context, owner *ResourceOwner) error {
	return a.authorizer.Authorize(ctx, ProfileFromOwner(owner))
}

// ProfileFromOwner converts a resource owner into the policy input.
func ProfileFromOwner(owner *ResourceOwner) authz.Profile {
	return authz.Profile{
		Sub:   owner.ID(),
		Name:  owner.Name(),
		Email: owner.Email(),
		Raw:   owner.ToRaw(),
	}
}

// HandleLogin redirects to the OAuth provider for authentication
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	// NoOp mode - redirect to home
	if a.IsNoOp() {
		logger.Info().Msg("Login not required in NoOp auth mode, redirecting to home")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	authURL, state, err := a.AuthorizationURL(AuthorizationOptions{
		ApprovalPrompt: r.URL.Query().Get("approval_prompt"),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build authorization URL")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// A stale or undecodable cookie yields a new session, which is overwritten here anyway.
	session, _ := a.sessionStore.Get(r, sessionName)
	session.Values[stateKey] = state
	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to save session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Str("auth_url", authURL).
		Str("provider", a.provider.GetProviderType()).
		Bool("session_is_new", session.IsNew).
		Msg("Redirecting to OAuth provider for login")
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback handles the OAuth2 callback from the OAuth provider
func (a *Authenticator) HandleCallback(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	// NoOp mode - redirect to home
	if a.IsNoOp() {
		logger.Info().Msg("OAuth callback not used in NoOp auth mode, redirecting to home")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	query := r.URL.Query()
	if code := query.Get("error"); code != "" {
		err := &errors.OAuthError{
			StatusCode:  http.StatusOK,
			Code:        code,
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
		}
		logger.Warn().Err(err).Msg("Provider refused authorization")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.sessionStore.Get(r, sessionName)
	if err != nil {
		logger.Warn().
			Str("error", err.Error()).
			Msg("Session cookie error in callback, redirecting to login")
		http.Redirect(w, r, constants.LoginPath, http.StatusTemporaryRedirect)
		return
	}

	storedState, ok := session.Values[stateKey].(string)
	if !ok || storedState == "" {
		logger.Error().
			Bool("session_is_new", session.IsNew).
			Msg("State not found in session")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	if receivedState := query.Get("state"); receivedState != storedState {
		logger.Error().
			Int("received_state_length", len(receivedState)).
			Msg("State mismatch")
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		logger.Error().Msg("Code not found in callback")
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	// the state is single use; clear it before any outcome is written
	delete(session.Values, stateKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		logger.Error().Err(err).Msg("Failed to clear session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	token, err := a.Exchange(r.Context(), code)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to exchange code for token")
		writeJSONError(w, statusFor(err), "Failed to exchange token")
		return
	}

	owner, err := a.FetchResourceOwner(r.Context(), token)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch resource owner")
		writeJSONError(w, statusFor(err), "Failed to fetch resource owner")
		return
	}

	if err := a.Authorize(r.Context(), owner); err != nil {
		logger.Warn().
			Str("sub", owner.ID()).
			Str("email", owner.Email()).
			Err(err).
			Msg("User authorization failed")
		writeJSONError(w, http.StatusForbidden, fmt.Sprintf("Access denied: %v", err))
		return
	}

	logger.Info().Str("sub", owner.ID()).Msg("User authenticated successfully")

	response := CallbackResponse{
		Provider:     a.provider.GetProviderType(),
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Profile:      owner,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		response.Expiry = &expiry
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(response)
}

// unwrapTransportError strips the *url.Error added by http.Client so callers
// see the provider error directly.
func unwrapTransportError(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		var clientErr *errors.ClientError
		var oauthErr *errors.OAuthError
		var parseErr *errors.ParseError
		switch {
		case stderrors.As(urlErr.Err, &clientErr):
			return clientErr
		case stderrors.As(urlErr.Err, &oauthErr):
			return oauthErr
		case stderrors.As(urlErr.Err, &parseErr):
			return parseErr
		}
	}
	return err
}

// statusFor maps an exchange error to the status returned to the user agent.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrIdentityProvider), stderrors.Is(err, errors.ErrUnexpectedPayload),
		stderrors.Is(err, errors.ErrInvalidIDToken):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
