package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/columk1/threads-clone-sub001/guard"
	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/sessions"
	"github.com/columk1/threads-clone-sub001/users"
)

const msgInvalidCredentials = "Incorrect email, username or password."

// SignInGetHandler renders the sign-in page (GET /sign-in)
func (s *Server) SignInGetHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("sign_in.html")

	return func(w http.ResponseWriter, r *http.Request) {
		data := s.pageData()
		data.UnauthenticatedURL = r.URL.Query().Get(guard.UnauthenticatedURLParam)
		data.Error = r.URL.Query().Get("error")
		render(w, tmpl, http.StatusOK, data)
	}
}

// SignInPostHandler checks credentials and starts a session (POST /sign-in)
func (s *Server) SignInPostHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("sign_in.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		identifier := users.Normalize(r.PostFormValue("identifier"))
		password := r.PostFormValue("password")
		target := r.PostFormValue(guard.UnauthenticatedURLParam)

		data := s.pageData()
		data.Email = identifier
		data.UnauthenticatedURL = target

		user, err := s.authenticate(r, identifier, password)
		switch apperrors.KindOf(err) {
		case apperrors.KindNone:
		case apperrors.KindUnauthorized:
			data.Error = msgInvalidCredentials
			render(w, tmpl, http.StatusUnauthorized, data)
			return
		default:
			s.storeFailure(w, r, err)
			return
		}

		if err := s.startSession(w, r, user); err != nil {
			s.storeFailure(w, r, err)
			return
		}

		log.Info().Str("user_id", user.ID).Msg("user signed in")
		if !user.EmailVerified {
			redirectSuccess(w, r, RouteVerifyEmail)
			return
		}
		redirectSuccess(w, r, s.policy.SafeRedirect(target))
	}
}

// SignOutHandler ends the current session (POST /sign-out)
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.Invalidate(r.Context(), s.cookies.Read(r)); err != nil {
			s.storeFailure(w, r, err)
			return
		}
		s.cookies.Clear(w, sessions.PhaseMutable)
		redirectSuccess(w, r, RouteSignIn)
	}
}

// authenticate resolves identifier as an email or username and checks the
// password. Unknown users and wrong passwords are indistinguishable.
func (s *Server) authenticate(r *http.Request, identifier, password string) (*users.User, error) {
	if identifier == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	lookup := s.users.GetByUsername
	if strings.Contains(identifier, "@") {
		lookup = s.users.GetByEmail
	}
	user, err := lookup(r.Context(), identifier)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// startSession issues a session for user, writes its cookie and seeds the
// request cache so later collaborators see the new session.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *users.User) error {
	session, err := s.sessions.Issue(r.Context(), user.ID, 0)
	if err != nil {
		return err
	}
	s.cookies.Set(w, sessions.PhaseMutable, session)
	s.cache.Store(requestID(r), sessions.Result[*users.User]{Session: session, User: user})
	return nil
}
