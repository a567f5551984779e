package constants

// Paths of the OVHcloud OAuth2 endpoints, relative to the region domain.
const (
	AuthorizePath = "/auth/oauth2/authorize"
	TokenPath     = "/auth/oauth2/token"
	UserInfoPath  = "/auth/oauth2/user"
)

// Paths served by the login server.
const (
	LoginPath    = "/login"
	CallbackPath = "/oauth/callback"
	MePath       = "/me"
	GraphQLPath  = "/graphql"
)

// ApprovalPromptAuto is sent when the caller does not choose an approval prompt.
const ApprovalPromptAuto = "auto"
