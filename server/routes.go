package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// Feed (verified users only)
	s.RegisterRouteHandler("GET "+RouteHome+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare(s.RouteGuard)...))

	// SIGN IN / OUT
	s.RegisterRouteHandler("GET "+RouteSignIn, ChainMiddleware(s.SignInGetHandler(), s.HTMLMiddleWare(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteSignIn, ChainMiddleware(s.SignInPostHandler(), s.HTMLMiddleWare(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteSignOut, ChainMiddleware(s.SignOutHandler(), s.HTMLMiddleWare(s.RouteGuard)...))

	// SIGN UP
	s.RegisterRouteHandler("GET "+RouteSignUp, ChainMiddleware(s.SignUpGetHandler(), s.HTMLMiddleWare(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteSignUp, ChainMiddleware(s.SignUpPostHandler(), s.HTMLMiddleWare(s.RouteGuard)...))

	// EMAIL VERIFICATION
	s.RegisterRouteHandler("GET "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmailGetHandler(), s.HTMLMiddleWare(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteVerifyEmail, ChainMiddleware(s.VerifyEmailPostHandler(), s.HTMLMiddleWare(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteResendVerification, ChainMiddleware(s.ResendVerificationHandler(), s.HTMLMiddleWare(s.RouteGuard)...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIUsersUnique, ChainMiddleware(s.UniqueCheckHandler(), s.APIMiddleware(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteAPIValidateEmail, ChainMiddleware(s.ValidateFieldHandler("email"), s.APIMiddleware(s.RouteGuard)...))
	s.RegisterRouteHandler("POST "+RouteAPIValidateUsername, ChainMiddleware(s.ValidateFieldHandler("username"), s.APIMiddleware(s.RouteGuard)...))

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/static/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

func logError(method, path, error string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	errorString := Red + error + ResetColor
	log.Error().Msgf("[%-19s] %s %s", displayMethod, path, errorString)
}
