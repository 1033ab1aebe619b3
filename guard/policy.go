// Package guard decides, per request path, whether a session is needed and
// whether its user must have a verified email.
package guard

import (
	"net/url"
	"strings"
)

// Access is the requirement a path places on the caller.
type Access int

const (
	AccessPublic Access = iota
	// AccessAuthenticated needs a session, verified or not.
	AccessAuthenticated
	// AccessVerified needs a session whose user has a verified email.
	AccessVerified
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	default:
		return "verified"
	}
}

// Outcome is what the guard tells the HTTP layer to do.
type Outcome int

const (
	Allow Outcome = iota
	RedirectSignIn
	RedirectVerify
	RedirectHome
	// Unauthorized is the API form of RedirectSignIn.
	Unauthorized
	// Forbidden is the API form of RedirectVerify.
	Forbidden
)

type Decision struct {
	Outcome  Outcome
	Location string
}

const UnauthenticatedURLParam = "unauthenticatedUrl"

// Policy holds the route classification. Paths match exactly or as a prefix
// followed by "/" unless the entry itself ends in "/".
type Policy struct {
	Public        []string
	Authenticated []string
	// AuthPages are public pages a signed-in user is sent away from.
	AuthPages []string
	APIPrefix string

	SignInPath string
	VerifyPath string
	HomePath   string
}

// DefaultPolicy gates every page except the sign-in and sign-up flows, the
// validation APIs, static assets and health on a verified email. The
// verification pages and sign-out only need a session.
func DefaultPolicy() Policy {
	return Policy{
		Public: []string{
			"/sign-in",
			"/sign-up",
			"/api/validate/",
			"/api/users/unique",
			"/static/",
			"/healthz",
			"/favicon.ico",
		},
		Authenticated: []string{
			"/verify-email",
			"/sign-out",
		},
		AuthPages:  []string{"/sign-in", "/sign-up"},
		APIPrefix:  "/api/",
		SignInPath: "/sign-in",
		VerifyPath: "/verify-email",
		HomePath:   "/",
	}
}

func (p Policy) Classify(path string) Access {
	switch {
	case matchAny(p.Public, path):
		return AccessPublic
	case matchAny(p.Authenticated, path):
		return AccessAuthenticated
	default:
		return AccessVerified
	}
}

// RequiresVerifiedEmail is the single predicate for the
// authenticated-and-verified area.
func (p Policy) RequiresVerifiedEmail(path string) bool {
	return p.Classify(path) == AccessVerified
}

func (p Policy) IsAPI(path string) bool {
	return p.APIPrefix != "" && strings.HasPrefix(path, p.APIPrefix)
}

// Decide resolves the request target u for a caller that is (or is not)
// authenticated and verified.
func (p Policy) Decide(u *url.URL, authenticated, verified bool) Decision {
	path := u.Path
	access := p.Classify(path)

	if access == AccessPublic {
		if authenticated && matchAny(p.AuthPages, path) {
			if verified {
				return Decision{Outcome: RedirectHome, Location: p.HomePath}
			}
			return Decision{Outcome: RedirectVerify, Location: p.VerifyPath}
		}
		return Decision{Outcome: Allow}
	}

	if !authenticated {
		if p.IsAPI(path) {
			return Decision{Outcome: Unauthorized}
		}
		return Decision{Outcome: RedirectSignIn, Location: p.SignInURL(u.RequestURI())}
	}

	if access == AccessVerified && !verified {
		if p.IsAPI(path) {
			return Decision{Outcome: Forbidden}
		}
		return Decision{Outcome: RedirectVerify, Location: p.VerifyPath}
	}
	return Decision{Outcome: Allow}
}

// SignInURL builds the sign-in location carrying the original target.
func (p Policy) SignInURL(target string) string {
	if target == "" || target == p.HomePath {
		return p.SignInPath
	}
	return p.SignInPath + "?" + UnauthenticatedURLParam + "=" + url.QueryEscape(target)
}

// SafeRedirect returns target when it is a local absolute path, otherwise
// the home path. It guards the unauthenticatedUrl round trip.
func (p Policy) SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return p.HomePath
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return p.HomePath
	}
	return target
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if match(pattern, path) {
			return true
		}
	}
	return false
}

func match(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	return path == pattern || strings.HasPrefix(path, pattern+"/")
}
