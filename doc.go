// Package secretshare is a small multi-strategy authentication server: local
// username/password, Google OAuth2 and Facebook OAuth2 logins all resolve to
// one user record, and logged in users can post a single anonymous secret
// that everyone can read.
//
// # Architecture
//
// UserStore: persisted user records. Username, GoogleID and FacebookID are
// alternative unique keys onto the same record space. Implementations live in
// stores/fs, stores/gorm and stores/gae.
//
// Verifier: resolves a Credential to a User. Local credentials are checked
// against a bcrypt hash; provider credentials are found or created atomically
// by provider id.
//
// SessionBinder: stores the user id in an scs session and loads the record
// back on each request. Middleware.EnsureUser gates routes on it.
//
// App: the HTTP surface wiring the above with the providers from the oauth2
// package.
//
// # Basic Usage
//
//	store := fs.NewFSUserStore("/path/to/storage")
//	session := scs.New()
//	app, err := secretshare.NewApp(store, session, slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	google := oauth2.NewGoogleOAuth2(clientId, clientSecret, baseURL+"/auth/google/secrets", nil)
//	app.AddProvider(secretshare.StrategyGoogle, google.BaseOAuth2)
//
//	http.ListenAndServe(":3000", app.Handler())
//
// # Routes
//
//	GET  /                       home page
//	GET  /login, POST /login     local login
//	GET  /register, POST /register
//	GET  /auth/{provider}        redirect to the provider
//	GET  /auth/{provider}/secrets provider callback
//	GET  /secrets                every non-empty secret, public
//	GET  /submit, POST /submit   requires a logged in user
//	GET  /logout
//	GET  /metrics, /healthz, /static/
//
// # Testing
//
// Handlers are tested end to end through httptest servers with the file
// store in a temp directory. Store implementations share the behaviour suite
// in stores/storetest.
package secretshare
