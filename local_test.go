package secretshare_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	ss "github.com/panyam/secretshare"
	"github.com/panyam/secretshare/stores/fs"
)

// setupLocalAuth returns a LocalAuth over a fresh file store, wrapped in the
// session middleware it needs.
func setupLocalAuth(t *testing.T) (*ss.LocalAuth, *scs.SessionManager) {
	t.Helper()
	store := fs.NewFSUserStore(t.TempDir())
	session := scs.New()
	verifier := ss.NewVerifier(store)
	verifier.Hasher = ss.NewBcryptHasher(bcrypt.MinCost)
	return &ss.LocalAuth{
		Verifier: verifier,
		Binder:   ss.NewSessionBinder(session, store),
	}, session
}

func postForm(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// TestSignupFlow tests user registration
func TestSignupFlow(t *testing.T) {
	localAuth, session := setupLocalAuth(t)
	signup := session.LoadAndSave(http.HandlerFunc(localAuth.HandleSignup))

	tests := []struct {
		name     string
		formData url.Values
		location string
	}{
		{
			name:     "successful signup",
			formData: url.Values{"username": {"testuser"}, "password": {"password123"}},
			location: "/secrets",
		},
		{
			name:     "duplicate username",
			formData: url.Values{"username": {"testuser"}, "password": {"other"}},
			location: "/register",
		},
		{
			name:     "duplicate username with different case",
			formData: url.Values{"username": {"TestUser"}, "password": {"other"}},
			location: "/register",
		},
		{
			name:     "missing password",
			formData: url.Values{"username": {"newuser"}},
			location: "/register",
		},
		{
			name:     "blank username",
			formData: url.Values{"username": {"   "}, "password": {"password123"}},
			location: "/register",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(signup, tt.formData)
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.location, rr.Header().Get("Location"))
		})
	}
}

// TestLoginFlow tests login with username and password
func TestLoginFlow(t *testing.T) {
	localAuth, session := setupLocalAuth(t)
	localAuth.SuccessURL = "/home"
	localAuth.LoginURL = "/signin"

	signup := session.LoadAndSave(http.HandlerFunc(localAuth.HandleSignup))
	postForm(signup, url.Values{"username": {"testuser"}, "password": {"password123"}})

	login := session.LoadAndSave(http.HandlerFunc(localAuth.HandleLogin))
	tests := []struct {
		name       string
		formData   url.Values
		location   string
		wantCookie bool
	}{
		{"valid credentials", url.Values{"username": {"testuser"}, "password": {"password123"}}, "/home", true},
		{"username is case insensitive", url.Values{"username": {"TESTUSER"}, "password": {"password123"}}, "/home", true},
		{"wrong password", url.Values{"username": {"testuser"}, "password": {"wrong"}}, "/signin", true},
		{"unknown user", url.Values{"username": {"nobody"}, "password": {"password123"}}, "/signin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(login, tt.formData)
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.location, rr.Header().Get("Location"))
			// failures still write the session to carry the flash message
			assert.Equal(t, tt.wantCookie, len(rr.Result().Cookies()) > 0)
		})
	}
}

func TestLoginFlow_CustomFields(t *testing.T) {
	localAuth, session := setupLocalAuth(t)
	localAuth.UsernameField = "email"
	localAuth.PasswordField = "pass"

	signup := session.LoadAndSave(http.HandlerFunc(localAuth.HandleSignup))
	rr := postForm(signup, url.Values{"email": {"a@example.com"}, "pass": {"pw"}})
	assert.Equal(t, "/secrets", rr.Header().Get("Location"))

	login := session.LoadAndSave(http.HandlerFunc(localAuth.HandleLogin))
	rr = postForm(login, url.Values{"username": {"a@example.com"}, "password": {"pw"}})
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	rr = postForm(login, url.Values{"email": {"a@example.com"}, "pass": {"pw"}})
	assert.Equal(t, "/secrets", rr.Header().Get("Location"))
}

func TestLoginFlow_BadJSON(t *testing.T) {
	localAuth, session := setupLocalAuth(t)
	login := session.LoadAndSave(http.HandlerFunc(localAuth.HandleLogin))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	login.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestSignupFlow_JSONBodyLimit(t *testing.T) {
	localAuth, session := setupLocalAuth(t)
	signup := session.LoadAndSave(http.HandlerFunc(localAuth.HandleSignup))

	postJSON := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		signup.ServeHTTP(rr, req)
		return rr
	}

	rr := postJSON(`{"username":"bob","password":"pw","pad":"` + strings.Repeat("x", ss.MaxJSONBodyBytes) + `"}`)
	assert.Equal(t, "/register", rr.Header().Get("Location"))

	rr = postJSON(`{"username":"bob","password":"pw","pad":"small"}`)
	assert.Equal(t, "/secrets", rr.Header().Get("Location"))
}
