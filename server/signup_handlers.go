package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/mailer"
	"github.com/columk1/threads-clone-sub001/signup"
	"github.com/columk1/threads-clone-sub001/users"
)

// SignUpGetHandler renders the signup page (GET /sign-up)
func (s *Server) SignUpGetHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("sign_up.html")

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, tmpl, http.StatusOK, s.pageData())
	}
}

// SignUpPostHandler registers the account, sends the first verification
// code and signs the new user in (POST /sign-up)
func (s *Server) SignUpPostHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("sign_up.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		form := signup.Form{
			Email:    r.PostFormValue("email"),
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}

		user, err := s.signup.Register(r.Context(), form)
		var verr *apperrors.ValidationError
		switch {
		case apperrors.As(err, &verr):
			data := s.pageData()
			data.Email = users.Normalize(form.Email)
			data.Username = users.Normalize(form.Username)
			data.FieldErrors = verr.Fields
			render(w, tmpl, http.StatusBadRequest, data)
			return
		case err != nil:
			s.storeFailure(w, r, err)
			return
		}

		s.sendCode(r, user, false)

		if err := s.startSession(w, r, user); err != nil {
			s.storeFailure(w, r, err)
			return
		}
		log.Info().Str("user_id", user.ID).Str("email", mailer.MaskEmail(user.Email)).Msg("user signed up")
		redirectSuccess(w, r, RouteVerifyEmail)
	}
}

// sendCode issues (or, when resend is set, re-issues) a code for user and
// mails it. Failures are logged; the caller's response does not depend on them.
func (s *Server) sendCode(r *http.Request, user *users.User, resend bool) {
	issue := s.verification.IssueCode
	if resend {
		issue = s.verification.ResendCode
	}
	code, err := issue(r.Context(), user.ID)
	if err != nil {
		evt := log.Error()
		if apperrors.KindOf(err) == apperrors.KindRateLimited {
			evt = log.Info()
		}
		evt.Err(err).Str("request_id", requestID(r)).Str("user_id", user.ID).Msg("verification code not issued")
		return
	}
	if err := s.mailer.SendVerificationCode(r.Context(), user.Email, code, s.verification.CodeTTL()); err != nil {
		log.Error().Err(err).Str("request_id", requestID(r)).Str("user_id", user.ID).Msg("verification code not delivered")
	}
}
