package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome   = "/"
	RouteHealth = "/healthz"

	// Auth Routes - Sign in & out
	RouteSignIn  = "/sign-in"
	RouteSignOut = "/sign-out"

	// Auth Routes - Signup
	RouteSignUp = "/sign-up"

	// Auth Routes - Email Verification
	RouteVerifyEmail        = "/verify-email"
	RouteResendVerification = "/verify-email/resend"

	// API Routes
	RouteAPIUsersUnique      = "/api/users/unique"
	RouteAPIValidateEmail    = "/api/validate/email"
	RouteAPIValidateUsername = "/api/validate/username"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)
