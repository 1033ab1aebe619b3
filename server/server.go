package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/columk1/threads-clone-sub001/guard"
	"github.com/columk1/threads-clone-sub001/internal/config"
	"github.com/columk1/threads-clone-sub001/mailer"
	"github.com/columk1/threads-clone-sub001/sessions"
	"github.com/columk1/threads-clone-sub001/signup"
	"github.com/columk1/threads-clone-sub001/users"
	"github.com/columk1/threads-clone-sub001/verification"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Users        users.UserRepo
	Hasher       users.PasswordHasher
	Sessions     *sessions.Manager[*users.User]
	Signup       *signup.Service
	Verification *verification.Flow
	Mailer       mailer.Mailer
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PRODUCTION")
	mux    *http.ServeMux
	routes []string
	config config.Config

	users        users.UserRepo
	hasher       users.PasswordHasher
	sessions     *sessions.Manager[*users.User]
	cache        *sessions.RequestCache[*users.User]
	cookies      sessions.CookieTransport
	policy       guard.Policy
	signup       *signup.Service
	uniqueness   *signup.UniquenessValidator
	verification *verification.Flow
	mailer       mailer.Mailer
}

func New(c config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Users == nil:
		return nil, fmt.Errorf("[Server New] user repo is required")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("[Server New] password hasher is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("[Server New] session manager is required")
	case deps.Signup == nil:
		return nil, fmt.Errorf("[Server New] signup service is required")
	case deps.Verification == nil:
		return nil, fmt.Errorf("[Server New] verification flow is required")
	case deps.Mailer == nil:
		return nil, fmt.Errorf("[Server New] mailer is required")
	}

	s := &Server{
		env:          c.GetEnv(),
		mux:          http.NewServeMux(),
		config:       c,
		users:        deps.Users,
		hasher:       deps.Hasher,
		sessions:     deps.Sessions,
		cache:        sessions.NewRequestCache[*users.User](deps.Sessions),
		cookies:      sessions.NewCookieTransport(c.GetSessionCookieName(), c.IsProduction()),
		policy:       guard.DefaultPolicy(),
		signup:       deps.Signup,
		uniqueness:   signup.NewUniquenessValidator(deps.Users),
		verification: deps.Verification,
		mailer:       deps.Mailer,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
