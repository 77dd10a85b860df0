package secretshare

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// MaxJSONBodyBytes caps a JSON login or signup body.
const MaxJSONBodyBytes = 1 << 20

// LocalAuth handles username/password login and registration posts.
type LocalAuth struct {
	Verifier *Verifier
	Binder   *SessionBinder

	// Form field names
	UsernameField string
	PasswordField string

	// Where a failed login or signup is sent back to.
	LoginURL  string
	SignupURL string

	// Where a successful login or signup lands.
	SuccessURL string

	Logger *slog.Logger
}

// HandleLogin authenticates a posted credential and binds the session.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := a.parseLoginForm(w, r)
	if err != nil {
		a.handleError(NewAuthError(ErrInvalidCredential, err.Error()), a.getLoginURL(), w, r)
		return
	}

	user, err := a.Verifier.Resolve(r.Context(), LocalCredential(username, password))
	if err != nil {
		a.handleError(err, a.getLoginURL(), w, r)
		return
	}
	a.login(user, w, r)
}

// HandleSignup registers a new local user and logs it in.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	username, password, err := a.parseLoginForm(w, r)
	if err != nil {
		a.handleError(NewAuthError(ErrInvalidCredential, err.Error()), a.getSignupURL(), w, r)
		return
	}

	user, err := a.Verifier.Register(r.Context(), username, password)
	if err != nil {
		a.handleError(err, a.getSignupURL(), w, r)
		return
	}
	a.login(user, w, r)
}

func (a *LocalAuth) login(user *User, w http.ResponseWriter, r *http.Request) {
	if err := a.Binder.Bind(r.Context(), user); err != nil {
		a.logger().Error("error binding session", "user_id", user.ID, "err", err)
		http.Redirect(w, r, a.getLoginURL(), http.StatusFound)
		return
	}
	a.logger().Info("user logged in", "strategy", StrategyLocal, "user_id", user.ID)
	http.Redirect(w, r, a.getSuccessURL(), http.StatusFound)
}

func (a *LocalAuth) handleError(err error, target string, w http.ResponseWriter, r *http.Request) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		authErr = NewAuthError(err, "something went wrong")
	}
	if authErr.Code == ErrCodeStoreUnavailable {
		a.logger().Error("local auth failed", "code", authErr.Code, "err", err)
		a.Binder.Flash(r.Context(), "Something went wrong, please try again.")
	} else {
		a.logger().Info("local auth failed", "code", authErr.Code, "err", err)
		a.Binder.Flash(r.Context(), authErr.Message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *LocalAuth) parseLoginForm(w http.ResponseWriter, r *http.Request) (username, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		body := http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
		if err = json.NewDecoder(body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		username, _ = data[usernameField].(string)
		password, _ = data[passwordField].(string)
	} else {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}
	return username, password, nil
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) getLoginURL() string {
	if a.LoginURL != "" {
		return a.LoginURL
	}
	return "/login"
}

func (a *LocalAuth) getSignupURL() string {
	if a.SignupURL != "" {
		return a.SignupURL
	}
	return "/register"
}

func (a *LocalAuth) getSuccessURL() string {
	if a.SuccessURL != "" {
		return a.SuccessURL
	}
	return "/secrets"
}

func (a *LocalAuth) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
