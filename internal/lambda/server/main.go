package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/rs/zerolog"
	"github.com/savaki/ovhcloud-oauth2/internal/auth"
	"github.com/savaki/ovhcloud-oauth2/internal/constants"
	"github.com/savaki/ovhcloud-oauth2/internal/di"
	"github.com/savaki/ovhcloud-oauth2/internal/services"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

//go:embed graphiql.html
var graphiqlHTML string

const requestIDHeader = "X-Request-Id"

type Handler struct {
	authenticator *auth.Authenticator
	schema        *graphql.Schema
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// loggingMiddleware logs details about each request and response. Every
// request is tagged with a ksuid request id, echoed in the X-Request-Id header.
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(requestIDHeader)
			if _, err := ksuid.Parse(requestID); err != nil {
				requestID = ksuid.New().String()
			}
			w.Header().Set(requestIDHeader, requestID)

			// Inject logger into request context
			ctx := logger.With().Str("request_id", requestID).Logger().WithContext(r.Context())
			r = r.WithContext(ctx)

			// Create a custom response writer to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("Incoming request")

			next.ServeHTTP(rw, r)

			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// stripEnvPrefixMiddleware removes the /{env} prefix from request paths
func stripEnvPrefixMiddleware(env string, next http.Handler) http.Handler {
	if env == "" {
		return next
	}

	prefix := "/" + env
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
		}

		if r.URL.Path == "" {
			r.URL.Path = "/"
		}

		next.ServeHTTP(w, r)
	})
}

func NewHandler(container di.Container) *Handler {
	return &Handler{
		authenticator: di.MustGet[*auth.Authenticator](container),
		schema:        di.MustGet[*graphql.Schema](container),
	}
}

func setupContainer(env, callbackURL string, disableAuth bool) (di.Container, error) {
	return di.New(env,
		di.WithCallbackURL(callbackURL),
		di.WithDisableAuth(disableAuth),
	)
}

// handleGraphQL serves the GraphQL API
func (h *Handler) handleGraphQL() http.Handler {
	return &relay.Handler{Schema: h.schema}
}

// handleGraphiQL serves the GraphiQL interface
func (h *Handler) handleGraphiQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(graphiqlHTML))
}

// handleMe returns the user info of the bearer token owner
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		h.errorResponse(w, http.StatusNotFound, "no resource owner, authentication is disabled")
		return
	}
	h.jsonResponse(w, http.StatusOK, owner)
}

// jsonResponse writes a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// errorResponse writes an error JSON response
func (h *Handler) errorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.jsonResponse(w, statusCode, ErrorResponse{Error: message})
}

// setupRouter configures all HTTP routes
func (h *Handler) setupRouter() http.Handler {
	mux := http.NewServeMux()

	// Auth routes (no authentication required)
	mux.HandleFunc("GET "+constants.LoginPath, h.authenticator.HandleLogin)
	mux.HandleFunc("GET "+constants.CallbackPath, h.authenticator.HandleCallback)

	// API routes: bearer token required, JSON errors on failure
	requireAuthAPI := h.authenticator.RequireAuth(false)
	mux.Handle("GET "+constants.MePath, requireAuthAPI(http.HandlerFunc(h.handleMe)))
	mux.Handle("POST "+constants.GraphQLPath, requireAuthAPI(h.handleGraphQL()))

	// GraphiQL reads the token from the URL fragment, so the page itself is public
	mux.HandleFunc("GET "+constants.GraphQLPath, h.handleGraphiQL)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// buildCallbackURL constructs the OAuth callback URL based on environment
func buildCallbackURL(env string, customDomain string, apiGatewayID string, port string) string {
	// For local development
	if port != "" {
		return fmt.Sprintf("http://localhost:%s%s", port, constants.CallbackPath)
	}

	// For Lambda: check if custom domain is set
	if customDomain != "" {
		return fmt.Sprintf("https://%s%s", customDomain, constants.CallbackPath)
	}

	// Default to API Gateway URL with environment prefix
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	if apiGatewayID != "" && env != "" {
		return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s%s", apiGatewayID, region, env, constants.CallbackPath)
	}

	// Fallback (should not happen in production)
	return "http://localhost:8080" + constants.CallbackPath
}

func newHTTPHandler(container di.Container, env string, logger zerolog.Logger) http.Handler {
	handler := NewHandler(container)
	router := handler.setupRouter()

	// Apply middleware stack: logging -> strip env prefix -> router
	return loggingMiddleware(logger)(stripEnvPrefixMiddleware(env, router))
}

// serveAction starts a local HTTP server for testing
func serveAction(c *cli.Context) error {
	port := c.String("port")
	addr := fmt.Sprintf(":%s", port)
	env := c.String("env")
	disableAuth := c.Bool("disable-auth")

	if c.Bool("disable-ssm") {
		if err := os.Setenv("DISABLE_SSM", "true"); err != nil {
			return fmt.Errorf("failed to disable SSM: %w", err)
		}
	}

	// Build callback URL for local dev (no custom domain or API Gateway ID in local mode)
	callbackURL := buildCallbackURL(env, "", "", port)

	container, err := setupContainer(env, callbackURL, disableAuth)
	if err != nil {
		return fmt.Errorf("failed to setup DI container: %w", err)
	}

	logger := di.MustGet[zerolog.Logger](container)

	logger.Info().
		Str("addr", addr).
		Str("env", env).
		Str("callback_url", callbackURL).
		Bool("disable_auth", disableAuth).
		Msg("Starting HTTP server")

	server := &http.Server{
		Addr:              addr,
		Handler:           newHTTPHandler(container, env, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}

// lambdaMain serves API Gateway V2 events
func lambdaMain(logger zerolog.Logger) error {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		return fmt.Errorf("ENV or ENVIRONMENT variable is required")
	}

	disableAuth := os.Getenv("DISABLE_AUTH") == "true"

	// The callback URL depends on configuration, so read it before building the container
	bootstrap, err := di.New(env)
	if err != nil {
		return fmt.Errorf("failed to setup bootstrap container: %w", err)
	}
	appConfig := di.MustGet[*services.Config](bootstrap)

	callbackURL := buildCallbackURL(env, appConfig.CustomDomain, appConfig.APIGatewayID, "")

	logger.Info().
		Str("env", env).
		Str("callback_url", callbackURL).
		Bool("disable_auth", disableAuth).
		Msg("Initializing Lambda handler")

	container, err := setupContainer(env, callbackURL, disableAuth)
	if err != nil {
		return fmt.Errorf("failed to setup DI container: %w", err)
	}

	// Use AWS Lambda HTTP adapter for API Gateway V2
	lambda.Start(httpadapter.NewV2(newHTTPHandler(container, env, logger)).ProxyWithContext)
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "server").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		if err := lambdaMain(logger); err != nil {
			logger.Error().Err(err).Msg("Failed to start Lambda handler")
			os.Exit(1)
		}
		return
	}

	// CLI mode for local testing
	app := &cli.App{
		Name:  "server",
		Usage: "OVHcloud OAuth2 login server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (for stripping path prefix)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start local HTTP server for testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on",
						Value: "8080",
					},
					&cli.BoolFlag{
						Name:    "disable-auth",
						Usage:   "Disable authentication (for local development only)",
						EnvVars: []string{"DISABLE_AUTH"},
					},
					&cli.BoolFlag{
						Name:    "disable-ssm",
						Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
						EnvVars: []string{"DISABLE_SSM"},
					},
				},
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
