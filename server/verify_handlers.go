package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/users"
)

const (
	msgCodeInvalid     = "That code is incorrect."
	msgCodeExpired     = "That code has expired. Request a new one."
	msgCodeMissing     = "There is no active code. Request a new one."
	msgCodeRateLimited = "Too many attempts. Request a new code."
	msgResent          = "If the account still needs verifying, a new code is on its way."
)

// VerifyEmailGetHandler renders the code entry page (GET /verify-email)
func (s *Server) VerifyEmailGetHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("verify_email.html")

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		if user.EmailVerified {
			redirectSuccess(w, r, RouteHome)
			return
		}
		data := s.verifyPageData(user)
		if r.URL.Query().Get("resent") != "" {
			data.Notice = msgResent
		}
		render(w, tmpl, http.StatusOK, data)
	}
}

// VerifyEmailPostHandler checks a submitted code (POST /verify-email)
func (s *Server) VerifyEmailPostHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("verify_email.html")

	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		if user.EmailVerified {
			redirectSuccess(w, r, RouteHome)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		err := s.verification.Verify(r.Context(), user.ID, r.PostFormValue("code"))
		if err == nil {
			log.Info().Str("user_id", user.ID).Msg("email verified")
			redirectSuccess(w, r, RouteHome)
			return
		}

		data := s.verifyPageData(user)
		switch {
		case apperrors.Is(err, apperrors.ErrCodeExpired):
			data.Error = msgCodeExpired
		case apperrors.Is(err, apperrors.ErrCodeNotFound):
			data.Error = msgCodeMissing
		case apperrors.Is(err, apperrors.ErrCodeInvalid):
			data.Error = msgCodeInvalid
		case apperrors.KindOf(err) == apperrors.KindRateLimited:
			data.Error = msgCodeRateLimited
		default:
			s.storeFailure(w, r, err)
			return
		}
		render(w, tmpl, http.StatusBadRequest, data)
	}
}

// ResendVerificationHandler re-sends a code to the signed-in user
// (POST /verify-email/resend). A form email naming any other address is
// ignored. The reply is the same whatever happened so it cannot be used to
// probe which addresses have accounts.
func (s *Server) ResendVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := users.Normalize(r.PostFormValue("email"))
		switch {
		case user.EmailVerified:
		case email != "" && email != user.Email:
			log.Info().Str("request_id", requestID(r)).Str("user_id", user.ID).Msg("resend for another address ignored")
		default:
			s.sendCode(r, user, true)
		}
		redirectSuccess(w, r, RouteVerifyEmail+"?resent=1")
	}
}

func (s *Server) verifyPageData(user *users.User) UIPageData {
	data := s.pageData()
	pub := user.Public()
	data.User = &pub
	data.Email = user.Email
	data.CodeTTLMinutes = int(s.verification.CodeTTL().Minutes())
	return data
}
