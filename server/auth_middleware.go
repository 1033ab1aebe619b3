package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/columk1/threads-clone-sub001/guard"
	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/sessions"
	"github.com/columk1/threads-clone-sub001/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyRequestID stores the server generated request id
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyCorrelationID stores the client supplied X-Request-ID
	ContextKeyCorrelationID ContextKey = "correlation_id"
)

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ContextKeyRequestID).(string)
	return id
}

func correlationID(r *http.Request) string {
	id, _ := r.Context().Value(ContextKeyCorrelationID).(string)
	return id
}

// RouteGuard validates the session once for the request, keeps the cookie in
// step with the result and applies the access policy before next runs.
func (s *Server) RouteGuard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID(r)
		if reqID == "" {
			reqID = uuid.New().String()
			r = r.WithContext(context.WithValue(r.Context(), ContextKeyRequestID, reqID))
		}
		defer s.cache.Release(reqID)

		access := s.policy.Classify(r.URL.Path)
		needsSession := access != guard.AccessPublic || s.isAuthPage(r.URL.Path)
		if !needsSession {
			next(w, r)
			return
		}

		res, err := s.session(w, r, sessions.PhaseMutable)
		if err != nil {
			s.storeFailure(w, r, err)
			return
		}

		verified := res.Authenticated() && res.User.EmailVerified
		d := s.policy.Decide(r.URL, res.Authenticated(), verified)
		switch d.Outcome {
		case guard.Allow:
			next(w, r)
		case guard.Unauthorized:
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		case guard.Forbidden:
			writeJSONError(w, http.StatusForbidden, "email not verified")
		default:
			redirectSuccess(w, r, d.Location)
		}
	}
}

// session returns the memoized validation result for r and applies any
// cookie change it calls for, as far as phase allows.
func (s *Server) session(w http.ResponseWriter, r *http.Request, phase sessions.Phase) (sessions.Result[*users.User], error) {
	presented := s.cookies.Read(r)
	res, err := s.cache.Validate(r.Context(), requestID(r), presented)
	if err != nil {
		return res, err
	}

	var current *sessions.Session
	if res.Authenticated() {
		current = res.Session
	}
	action := s.cookies.Apply(w, phase, presented != "", current)
	if action == sessions.CookieSkipped {
		log.Debug().Str("request_id", requestID(r)).Msg("session cookie update skipped outside mutable phase")
	}
	return res, nil
}

// currentUser is the signed-in user for a request that already passed the
// guard. Handlers render afterwards, so no cookie is written here.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*users.User, error) {
	res, err := s.session(w, r, sessions.PhaseRender)
	if err != nil {
		return nil, err
	}
	if !res.Authenticated() {
		return nil, apperrors.ErrUnauthorized
	}
	return res.User, nil
}

// requireUser writes the failure response itself when there is no user.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*users.User, bool) {
	user, err := s.currentUser(w, r)
	if apperrors.Is(err, apperrors.ErrUnauthorized) {
		redirectSuccess(w, r, s.policy.SignInURL(r.URL.RequestURI()))
		return nil, false
	}
	if err != nil {
		s.storeFailure(w, r, err)
		return nil, false
	}
	return user, true
}

func (s *Server) isAuthPage(path string) bool {
	for _, p := range s.policy.AuthPages {
		if p == path {
			return true
		}
	}
	return false
}

// storeFailure answers a request whose session could not be resolved
// because the store failed. It is never treated as signed out.
func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("request_id", requestID(r)).Str("kind", apperrors.KindOf(err).String()).Msg("session lookup failed")
	if s.policy.IsAPI(r.URL.Path) {
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}
