package secretshare

import (
	"context"
	"net/http"
)

type loggedInUserKey struct{}

// Middleware gates routes on the session's logged in user.
type Middleware struct {
	Binder *SessionBinder

	// Where EnsureUser sends anonymous requests. Defaults to /login.
	LoginURL string
}

// LoadUser resolves the session user once and stores it in the request
// context for downstream handlers. Anonymous requests pass through unchanged.
func (m *Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(loggedInUserKey{}).(*User); ok {
			next.ServeHTTP(w, r)
			return
		}
		if user := m.Binder.Resolve(r.Context()); user != nil {
			r = r.WithContext(context.WithValue(r.Context(), loggedInUserKey{}, user))
		}
		next.ServeHTTP(w, r)
	})
}

// EnsureUser redirects anonymous requests to the login page.
func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	return m.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r) {
			http.Redirect(w, r, m.loginURL(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m *Middleware) loginURL() string {
	if m.LoginURL == "" {
		return "/login"
	}
	return m.LoginURL
}

// IsAuthenticated reports whether LoadUser found a user for this request.
func IsAuthenticated(r *http.Request) bool {
	return LoggedInUser(r) != nil
}

// LoggedInUser returns the user LoadUser put in the request context, or nil.
func LoggedInUser(r *http.Request) *User {
	user, _ := r.Context().Value(loggedInUserKey{}).(*User)
	return user
}
