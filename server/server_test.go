package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/columk1/threads-clone-sub001/internal/config"
	"github.com/columk1/threads-clone-sub001/sessions"
	"github.com/columk1/threads-clone-sub001/sessions/repofakes"
	"github.com/columk1/threads-clone-sub001/signup"
	"github.com/columk1/threads-clone-sub001/users"
	fakeuserrepo "github.com/columk1/threads-clone-sub001/users/repofake"
	"github.com/columk1/threads-clone-sub001/verification"
	fakecoderepo "github.com/columk1/threads-clone-sub001/verification/repofake"
)

const testPassword = "Sup3rSecret"

type captureMailer struct {
	mu    sync.Mutex
	codes map[string][]string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = append(m.codes[to], code)
	return nil
}

func (m *captureMailer) sent(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.codes[to]...)
}

type fixture struct {
	srv      *Server
	users    *fakeuserrepo.FakeUserRepo
	sessions *repofakes.FakeSessionRepo
	codes    *fakecoderepo.FakeCodeRepo
	mail     *captureMailer
	hasher   users.PasswordHasher

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("ENV", "TEST")

	f := &fixture{
		users:    fakeuserrepo.NewFakeUserRepo(),
		sessions: repofakes.NewFakeSessionRepo(),
		codes:    fakecoderepo.NewFakeCodeRepo(),
		mail:     &captureMailer{codes: make(map[string][]string)},
		hasher:   users.BcryptHasher{Cost: bcrypt.MinCost},
		now:      time.Now(),
	}

	manager, err := sessions.NewManager[*users.User](f.sessions, f.users.GetByID, time.Hour)
	require.NoError(t, err)
	signupService, err := signup.NewService(f.users, f.hasher)
	require.NoError(t, err)
	flow, err := verification.NewFlow(f.codes, f.users,
		verification.NewStoreResendLimiter(f.codes, time.Minute, f.clock),
		verification.WithNowTime(f.clock),
	)
	require.NoError(t, err)

	f.srv, err = New(config.New(), Deps{
		Users:        f.users,
		Hasher:       f.hasher,
		Sessions:     manager,
		Signup:       signupService,
		Verification: flow,
		Mailer:       f.mail,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

// createUser stores a user directly, bypassing the signup form.
func (f *fixture) createUser(t *testing.T, email, username string, verified bool) *users.User {
	t.Helper()
	hash, err := f.hasher.Hash(testPassword)
	require.NoError(t, err)
	u := &users.User{Email: email, Username: username, PasswordHash: hash, EmailVerified: verified}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) signUp(t *testing.T, email, username string) *http.Cookie {
	t.Helper()
	rec := f.do(http.MethodPost, RouteSignUp, url.Values{
		"email":    {email},
		"username": {username},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, RouteVerifyEmail, rec.Header().Get("Location"))
	return sessionCookie(t, rec)
}

func (f *fixture) signIn(t *testing.T, identifier string) *http.Cookie {
	t.Helper()
	rec := f.do(http.MethodPost, RouteSignIn, url.Values{"identifier": {identifier}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessions.DefaultCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func otherCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(config.New(), Deps{})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, RouteHealth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeJSON(t, rec)["status"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGuardRedirectsAnonymousToSignIn(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, RouteHome, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteSignIn, rec.Header().Get("Location"))

	rec = f.do(http.MethodGet, RouteVerifyEmail, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/sign-in?unauthenticatedUrl=%2Fverify-email", rec.Header().Get("Location"))
}

func TestGuardClearsUnknownCookie(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, RouteHome, nil, &http.Cookie{Name: sessions.DefaultCookieName, Value: "bogus"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteSignIn, rec.Header().Get("Location"))

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, sessions.DefaultCookieName, cleared[0].Name)
	require.Negative(t, cleared[0].MaxAge)
	require.Zero(t, f.sessions.Writes())
}

func TestGuardStoreFailureIsNotSignedOut(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "carol@example.com", "carol", true)
	cookie := f.signIn(t, "carol")

	f.sessions.Err = errors.New("connection refused")
	rec := f.do(http.MethodGet, RouteHome, nil, cookie)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
	require.Empty(t, rec.Result().Cookies())
}

func TestSignUpVerifyFlow(t *testing.T) {
	f := newFixture(t)
	cookie := f.signUp(t, "Alice@Example.com", "Alice")

	sent := f.mail.sent("alice@example.com")
	require.Len(t, sent, 1)
	code := sent[0]

	// Unverified users are held at the verification page.
	rec := f.do(http.MethodGet, RouteHome, nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteVerifyEmail, rec.Header().Get("Location"))

	rec = f.do(http.MethodGet, RouteVerifyEmail, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice@example.com")

	rec = f.do(http.MethodPost, RouteVerifyEmail, url.Values{"code": {otherCode(code)}}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), msgCodeInvalid)

	rec = f.do(http.MethodPost, RouteVerifyEmail, url.Values{"code": {code}}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteHome, rec.Header().Get("Location"))

	rec = f.do(http.MethodGet, RouteHome, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "@alice")

	rec = f.do(http.MethodGet, RouteVerifyEmail, nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteHome, rec.Header().Get("Location"))
}

func TestVerifyExpiredCode(t *testing.T) {
	f := newFixture(t)
	cookie := f.signUp(t, "dave@example.com", "dave")
	code := f.mail.sent("dave@example.com")[0]

	f.advance(verification.DefaultCodeTTL + time.Second)
	rec := f.do(http.MethodPost, RouteVerifyEmail, url.Values{"code": {code}}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), msgCodeExpired)
}

func TestVerifyTooManyAttempts(t *testing.T) {
	f := newFixture(t)
	cookie := f.signUp(t, "erin@example.com", "erin")
	code := f.mail.sent("erin@example.com")[0]

	for i := 0; i < verification.DefaultMaxAttempts; i++ {
		rec := f.do(http.MethodPost, RouteVerifyEmail, url.Values{"code": {otherCode(code)}}, cookie)
		require.Contains(t, rec.Body.String(), msgCodeInvalid)
	}
	rec := f.do(http.MethodPost, RouteVerifyEmail, url.Values{"code": {code}}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), msgCodeRateLimited)

	// The code is gone; even the right one no longer works.
	rec = f.do(http.MethodPost, RouteVerifyEmail, url.Values{"code": {code}}, cookie)
	require.Contains(t, rec.Body.String(), msgCodeMissing)
}

func TestResendIsGeneric(t *testing.T) {
	f := newFixture(t)
	cookie := f.signUp(t, "frank@example.com", "frank")
	require.Len(t, f.mail.sent("frank@example.com"), 1)

	// Inside the resend window nothing is sent, but the reply is the same.
	rec := f.do(http.MethodPost, RouteResendVerification, url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteVerifyEmail+"?resent=1", rec.Header().Get("Location"))
	require.Len(t, f.mail.sent("frank@example.com"), 1)

	f.advance(2 * time.Minute)
	rec = f.do(http.MethodPost, RouteResendVerification, url.Values{"email": {"frank@example.com"}}, cookie)
	require.Equal(t, RouteVerifyEmail+"?resent=1", rec.Header().Get("Location"))
	require.Len(t, f.mail.sent("frank@example.com"), 2)

	rec = f.do(http.MethodPost, RouteResendVerification, url.Values{"email": {"ghost@example.com"}}, cookie)
	require.Equal(t, RouteVerifyEmail+"?resent=1", rec.Header().Get("Location"))
	require.Empty(t, f.mail.sent("ghost@example.com"))

	rec = f.do(http.MethodGet, RouteVerifyEmail+"?resent=1", nil, cookie)
	require.Contains(t, rec.Body.String(), msgResent)
}

func TestResendIgnoresOtherAccounts(t *testing.T) {
	f := newFixture(t)
	cookie := f.signUp(t, "hugo@example.com", "hugo")
	f.signUp(t, "iris@example.com", "iris")

	iris, err := f.users.GetByEmail(context.Background(), "iris@example.com")
	require.NoError(t, err)
	before, err := f.codes.Get(context.Background(), iris.ID)
	require.NoError(t, err)

	f.advance(2 * time.Minute)
	rec := f.do(http.MethodPost, RouteResendVerification, url.Values{"email": {"iris@example.com"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteVerifyEmail+"?resent=1", rec.Header().Get("Location"))

	require.Len(t, f.mail.sent("iris@example.com"), 1)
	require.Len(t, f.mail.sent("hugo@example.com"), 1)
	after, err := f.codes.Get(context.Background(), iris.ID)
	require.NoError(t, err)
	require.Equal(t, before.CodeHash, after.CodeHash)
}

func TestSignUpRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "taken@example.com", "taken", true)

	rec := f.do(http.MethodPost, RouteSignUp, url.Values{
		"email":    {"TAKEN@example.com"},
		"username": {"taken"},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), signup.MsgEmailTaken)
	require.Contains(t, rec.Body.String(), signup.MsgUsernameTaken)
	require.Empty(t, rec.Result().Cookies())
}

func TestSignUpRejectsInvalidForm(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, RouteSignUp, url.Values{
		"email":    {"not-an-email"},
		"username": {"ok_name"},
		"password": {"short"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Enter a valid email address.")
	require.Contains(t, rec.Body.String(), "ok_name")

	exists, err := f.users.ExistsBy(context.Background(), users.FieldUsername, "ok_name")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "gina@example.com", "gina", true)
	f.createUser(t, "hank@example.com", "hank", false)

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(http.MethodPost, RouteSignIn, url.Values{"identifier": {"gina"}, "password": {"Wr0ngPassword"}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), msgInvalidCredentials)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := f.do(http.MethodPost, RouteSignIn, url.Values{"identifier": {"nobody@example.com"}, "password": {testPassword}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), msgInvalidCredentials)
	})

	t.Run("returns to original target", func(t *testing.T) {
		rec := f.do(http.MethodPost, RouteSignIn, url.Values{
			"identifier":         {"GINA@example.com"},
			"password":           {testPassword},
			"unauthenticatedUrl": {"/profile?tab=replies"},
		})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/profile?tab=replies", rec.Header().Get("Location"))
		require.NotNil(t, sessionCookie(t, rec))
	})

	t.Run("ignores off-site target", func(t *testing.T) {
		rec := f.do(http.MethodPost, RouteSignIn, url.Values{
			"identifier":         {"gina"},
			"password":           {testPassword},
			"unauthenticatedUrl": {"//evil.example/steal"},
		})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, RouteHome, rec.Header().Get("Location"))
	})

	t.Run("unverified goes to verification", func(t *testing.T) {
		rec := f.do(http.MethodPost, RouteSignIn, url.Values{"identifier": {"hank"}, "password": {testPassword}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, RouteVerifyEmail, rec.Header().Get("Location"))
	})

	t.Run("htmx", func(t *testing.T) {
		form := url.Values{"identifier": {"gina"}, "password": {testPassword}}
		req := httptest.NewRequest(http.MethodPost, RouteSignIn, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, RouteHome, rec.Header().Get("HX-Redirect"))
	})
}

func TestSignedInUserLeavesAuthPages(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "ivy@example.com", "ivy", true)
	f.createUser(t, "jack@example.com", "jack", false)

	rec := f.do(http.MethodGet, RouteSignIn, nil, f.signIn(t, "ivy"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteHome, rec.Header().Get("Location"))

	rec = f.do(http.MethodGet, RouteSignUp, nil, f.signIn(t, "jack"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteVerifyEmail, rec.Header().Get("Location"))
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "kate@example.com", "kate", true)
	cookie := f.signIn(t, "kate")
	require.Equal(t, 1, f.sessions.Len())

	rec := f.do(http.MethodPost, RouteSignOut, nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteSignIn, rec.Header().Get("Location"))
	require.Zero(t, f.sessions.Len())

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Negative(t, cookies[len(cookies)-1].MaxAge)

	rec = f.do(http.MethodGet, RouteHome, nil, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteSignIn, rec.Header().Get("Location"))
}

func TestUniqueCheckAPI(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "lena@example.com", "lena", true)

	rec := f.do(http.MethodGet, RouteAPIUsersUnique, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeJSON(t, rec), "error")

	rec = f.do(http.MethodGet, RouteAPIUsersUnique+"?email=LENA@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decodeJSON(t, rec)["isUnique"])

	rec = f.do(http.MethodGet, RouteAPIUsersUnique+"?username=mike", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeJSON(t, rec)["isUnique"])
}

func TestValidateFieldAPI(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "nora@example.com", "nora", true)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		unique any
	}{
		{"taken email", RouteAPIValidateEmail, `{"email":"nora@example.com"}`, http.StatusOK, false},
		{"free email", RouteAPIValidateEmail, `{"email":"omar@example.com"}`, http.StatusOK, true},
		{"taken username", RouteAPIValidateUsername, `{"username":"NORA"}`, http.StatusOK, false},
		{"missing field", RouteAPIValidateUsername, `{"email":"nora@example.com"}`, http.StatusBadRequest, nil},
		{"non-string field", RouteAPIValidateEmail, `{"email":42}`, http.StatusBadRequest, nil},
		{"bad json", RouteAPIValidateEmail, `{`, http.StatusBadRequest, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.doJSON(http.MethodPost, tc.target, tc.body)
			require.Equal(t, tc.status, rec.Code)
			body := decodeJSON(t, rec)
			if tc.status == http.StatusOK {
				require.Equal(t, tc.unique, body["isUnique"])
			} else {
				require.Contains(t, body, "error")
			}
		})
	}
}

func TestStaticFiles(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/static/app.css", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = f.do(http.MethodGet, "/static/missing.css", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestCacheReleased(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "pat@example.com", "pat", true)
	cookie := f.signIn(t, "pat")

	f.do(http.MethodGet, RouteHome, nil, cookie)
	require.Zero(t, f.srv.cache.Len())
}

func TestSharedRequestIDDoesNotShareSession(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "quinn@example.com", "quinn", true)
	cookie := f.signIn(t, "quinn")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.srv.RegisterRouteHandler("GET /slow", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}, f.srv.HTMLMiddleWare(f.srv.RouteGuard)...))

	signedInDone := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/slow", nil)
		req.Header.Set("X-Request-ID", "shared-id")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		signedInDone <- rec.Code
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("signed-in request never reached its handler")
	}

	req := httptest.NewRequest(http.MethodGet, RouteHome, nil)
	req.Header.Set("X-Request-ID", "shared-id")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	close(release)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, RouteSignIn, rec.Header().Get("Location"))
	require.NotContains(t, rec.Body.String(), "@quinn")
	require.NotEqual(t, "shared-id", rec.Header().Get("X-Request-ID"))
	require.Equal(t, http.StatusOK, <-signedInDone)
}
