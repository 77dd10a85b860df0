package secretshare

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	oa2 "github.com/panyam/secretshare/oauth2"
)

// App is the HTTP surface: pages, local and OAuth login, the secrets
// listing and the gated submit form.
type App struct {
	Store      UserStore
	Session    *scs.SessionManager
	Verifier   *Verifier
	Binder     *SessionBinder
	Middleware *Middleware
	Local      *LocalAuth
	Metrics    *Metrics
	Logger     *slog.Logger

	providers map[Strategy]*oa2.BaseOAuth2
	templates *template.Template
}

// NewApp wires the default collaborators around store and session. A nil
// logger uses slog.Default().
func NewApp(store UserStore, session *scs.SessionManager, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	a := &App{
		Store:     store,
		Session:   session,
		Metrics:   NewMetrics(),
		Logger:    logger,
		providers: map[Strategy]*oa2.BaseOAuth2{},
		templates: templates,
	}
	a.Verifier = &Verifier{Store: store, Hasher: NewBcryptHasher(0), Metrics: a.Metrics, Logger: logger}
	a.Binder = &SessionBinder{Session: session, Store: store, Key: DefaultSessionKey, Logger: logger}
	a.Middleware = &Middleware{Binder: a.Binder, LoginURL: "/login"}
	a.Local = &LocalAuth{Verifier: a.Verifier, Binder: a.Binder, Logger: logger}
	return a, nil
}

// AddProvider mounts an OAuth flow at /auth/{strategy} with its callback at
// /auth/{strategy}/secrets. The provider's user and failure handlers are
// replaced by the app's. Strategies that are not providers are ignored.
func (a *App) AddProvider(strategy Strategy, provider *oa2.BaseOAuth2) *App {
	if !strategy.IsProvider() {
		a.Logger.Warn("ignoring non-provider strategy", "strategy", strategy)
		return a
	}
	provider.HandleUser = a.SaveUserAndRedirect
	provider.HandleFailure = a.HandleProviderFailure
	provider.Logger = a.Logger
	a.providers[strategy] = provider
	return a
}

// Handler returns the router wrapped in the session middleware.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", a.page(a.handleHome)).Methods(http.MethodGet)
	r.Handle("/login", a.page(a.handleLoginPage)).Methods(http.MethodGet)
	r.HandleFunc("/login", a.Local.HandleLogin).Methods(http.MethodPost)
	r.Handle("/register", a.page(a.handleRegisterPage)).Methods(http.MethodGet)
	r.HandleFunc("/register", a.Local.HandleSignup).Methods(http.MethodPost)
	r.Handle("/secrets", a.page(a.handleSecrets)).Methods(http.MethodGet)
	r.Handle("/submit", a.Middleware.EnsureUser(http.HandlerFunc(a.handleSubmitPage))).Methods(http.MethodGet)
	r.Handle("/submit", a.Middleware.EnsureUser(http.HandlerFunc(a.handleSubmit))).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.handleLogout).Methods(http.MethodGet)

	for _, strategy := range ProviderStrategies {
		redirect, callback := a.providerHandlers(strategy)
		r.HandleFunc("/auth/"+string(strategy), redirect).Methods(http.MethodGet)
		r.HandleFunc("/auth/"+string(strategy)+"/secrets", callback).Methods(http.MethodGet)
	}

	r.Handle("/metrics", a.Metrics.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", StaticHandler()))

	return a.Session.LoadAndSave(r)
}

// providerHandlers returns the redirect and callback handlers for strategy.
// A provider without credentials fails both straight back to /login.
func (a *App) providerHandlers(strategy Strategy) (redirect, callback http.HandlerFunc) {
	if provider, ok := a.providers[strategy]; ok {
		return provider.HandleRedirect, provider.HandleCallback
	}
	disabled := func(w http.ResponseWriter, r *http.Request) {
		a.HandleProviderFailure(string(strategy), ErrProviderNotConfigured, w, r)
	}
	return disabled, disabled
}

// SaveUserAndRedirect is called by the OAuth providers with the provider
// profile. It resolves the profile id to a user, binds the session and sends
// the browser to /secrets. Errors are handed back to the provider, which
// reports them through HandleProviderFailure.
func (a *App) SaveUserAndRedirect(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) error {
	strategy := Strategy(provider)
	if !strategy.IsProvider() {
		return NewAuthError(ErrUpstreamAuthFailure, "unsupported provider "+provider)
	}
	providerID, _ := userInfo["id"].(string)
	user, err := a.Verifier.Resolve(r.Context(), ProviderCredential(strategy, providerID))
	if err != nil {
		return err
	}
	if err := a.Binder.Bind(r.Context(), user); err != nil {
		return NewAuthError(fmt.Errorf("bind session: %w", err), "failed to start session")
	}
	a.Logger.Info("user logged in", "strategy", provider, "user_id", user.ID)
	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

// HandleProviderFailure sends a failed OAuth login back to /login without
// touching the session's user.
func (a *App) HandleProviderFailure(provider string, err error, w http.ResponseWriter, r *http.Request) {
	var authErr *AuthError
	if errors.Is(err, ErrProviderNotConfigured) {
		a.Logger.Info("oauth provider not configured", "strategy", provider)
		a.Binder.Flash(r.Context(), "Sign in with "+provider+" is not available.")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if !errors.As(err, &authErr) {
		// failed before the verifier ran, so it has not been counted yet
		a.Metrics.observeLogin(Strategy(provider), NewAuthError(ErrUpstreamAuthFailure, err.Error()))
	}
	a.Logger.Info("oauth login failed", "strategy", provider, "err", err)
	a.Binder.Flash(r.Context(), "Could not sign in with "+provider+".")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// page resolves the session user once before rendering.
func (a *App) page(h http.HandlerFunc) http.Handler {
	return a.Middleware.LoadUser(h)
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "home.html", nil)
}

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login.html", nil)
}

func (a *App) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "register.html", nil)
}

// handleSecrets lists every non-empty secret. It is public.
func (a *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	users, err := a.Store.ListUsersWithSecrets(r.Context())
	if err != nil {
		a.Logger.Error("error listing secrets", "err", err)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	secrets := make([]string, 0, len(users))
	for _, u := range users {
		secrets = append(secrets, u.Secret)
	}
	a.render(w, r, "secrets.html", secrets)
}

func (a *App) handleSubmitPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "submit.html", nil)
}

func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user := LoggedInUser(r)
	secret := r.FormValue("secret")
	if err := a.Store.SetSecret(r.Context(), user.ID, secret); err != nil {
		a.Logger.Error("error saving secret", "user_id", user.ID, "err", err)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	a.Metrics.observeSecret()
	a.Logger.Info("secret submitted", "user_id", user.ID)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.Binder.Clear(r.Context()); err != nil {
		a.Logger.Warn("error clearing session", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) render(w http.ResponseWriter, r *http.Request, name string, secrets []string) {
	data := pageData{
		User:    LoggedInUser(r),
		Flash:   a.Binder.PopFlash(r.Context()),
		Secrets: secrets,
	}
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		a.Logger.Error("error rendering template", "template", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
