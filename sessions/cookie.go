package sessions

import (
	"net/http"
	"time"
)

const DefaultCookieName = "user_session"

// Phase tells CookieTransport whether the response may still be mutated.
type Phase int

const (
	// PhaseRender is a pure rendering pass. Cookie writes are refused.
	PhaseRender Phase = iota
	// PhaseMutable is a route or action handler that may set headers.
	PhaseMutable
)

// CookieAction reports what Apply did to the response.
type CookieAction int

const (
	CookieUnchanged CookieAction = iota
	CookieSet
	CookieCleared
	// CookieSkipped means a write was needed but the phase forbade it.
	CookieSkipped
)

func (a CookieAction) String() string {
	switch a {
	case CookieSet:
		return "set"
	case CookieCleared:
		return "cleared"
	case CookieSkipped:
		return "skipped"
	default:
		return "unchanged"
	}
}

// CookieTransport maps session results onto the session cookie.
type CookieTransport struct {
	Name   string
	Secure bool
}

func NewCookieTransport(name string, secure bool) CookieTransport {
	if name == "" {
		name = DefaultCookieName
	}
	return CookieTransport{Name: name, Secure: secure}
}

// Read returns the presented session id, or "" when there is none.
func (t CookieTransport) Read(r *http.Request) string {
	c, err := r.Cookie(t.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Apply writes the cookie a validation result calls for: a Fresh session is
// (re)set and a missing session clears a cookie the client presented.
// Outside PhaseMutable nothing is written and CookieSkipped is returned.
func (t CookieTransport) Apply(w http.ResponseWriter, phase Phase, presented bool, s *Session) CookieAction {
	switch {
	case s != nil && s.Fresh:
		return t.Set(w, phase, s)
	case s == nil && presented:
		return t.Clear(w, phase)
	default:
		return CookieUnchanged
	}
}

// Set writes s as a browser-session cookie. Expiry is enforced server side,
// so no MaxAge is sent.
func (t CookieTransport) Set(w http.ResponseWriter, phase Phase, s *Session) CookieAction {
	if phase != PhaseMutable {
		return CookieSkipped
	}
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return CookieSet
}

// Clear expires the cookie immediately.
func (t CookieTransport) Clear(w http.ResponseWriter, phase Phase) CookieAction {
	if phase != PhaseMutable {
		return CookieSkipped
	}
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	return CookieCleared
}
