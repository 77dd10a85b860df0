package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ErrStateMismatch is reported when the callback state does not match the
// state issued by the redirector.
var ErrStateMismatch = errors.New("invalid oauth state")

const stateCookieName = "oauthstate"

// BaseOAuth2 runs the authorization-code flow shared by every provider.
// Providers configure the endpoint, scopes, user info URL and the profile
// field holding the provider's user id.
type BaseOAuth2 struct {
	Provider     string
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// UserInfoURL is queried with the access token after the code exchange.
	UserInfoURL string

	// IDField names the user info field carrying the provider user id.
	IDField string

	// HandleUser is called with the normalized profile once the provider has
	// authenticated the user. A non-nil error fails the flow.
	HandleUser HandleUserFunc

	// HandleFailure is called when the flow fails. Defaults to a redirect to FailureURL.
	HandleFailure HandleFailureFunc

	// FailureURL is where the default failure handler redirects. Defaults to /login.
	FailureURL string

	// State signs the state parameter. When nil the raw nonce is sent.
	State *StateSigner

	Logger *slog.Logger

	oauthConfig oauth2.Config
	httpClient  *http.Client
}

func newBaseOAuth2(provider, clientId, clientSecret, callbackUrl string, endpoint oauth2.Endpoint, scopes []string, handleUser HandleUserFunc) *BaseOAuth2 {
	out := &BaseOAuth2{
		Provider:     provider,
		ClientId:     clientId,
		ClientSecret: clientSecret,
		CallbackURL:  callbackUrl,
		IDField:      "id",
		HandleUser:   handleUser,
		FailureURL:   "/login",
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
	}
	return out
}

// SetOAuthEndpoint replaces the provider endpoint, mostly for tests.
func (b *BaseOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// SetHTTPClient sets the client used for the code exchange and user info calls.
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

// HandleRedirect sends the browser to the provider's consent screen.
func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	nonce := generateStateOauthCookie(w)
	state := nonce
	if b.State != nil {
		signed, err := b.State.Sign(nonce)
		if err != nil {
			b.fail(w, r, fmt.Errorf("sign oauth state: %w", err))
			return
		}
		state = signed
	}
	b.logger().Debug("oauth redirect", "provider", b.Provider, "state", PendingProviderRedirect)
	http.Redirect(w, r, b.oauthConfig.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the flow when the provider redirects back.
func (b *BaseOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	b.Complete(w, r)
}

// Complete runs the callback half of the flow and reports the terminal state
// it reached. Authenticated means HandleUser accepted the profile and wrote
// the response; Failed means HandleFailure did.
func (b *BaseOAuth2) Complete(w http.ResponseWriter, r *http.Request) LoginState {
	b.logger().Debug("oauth callback", "provider", b.Provider, "state", PendingCallback)
	if err := b.checkState(w, r); err != nil {
		b.fail(w, r, err)
		return Failed
	}
	if reason := r.FormValue("error"); reason != "" {
		b.fail(w, r, fmt.Errorf("provider returned error: %s", reason))
		return Failed
	}

	ctx := b.exchangeContext(r.Context())
	token, err := b.oauthConfig.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		b.fail(w, r, fmt.Errorf("code exchange: %w", err))
		return Failed
	}
	userInfo, err := b.fetchUserInfo(ctx, token)
	if err != nil {
		b.fail(w, r, err)
		return Failed
	}
	if b.HandleUser == nil {
		b.fail(w, r, errors.New("no user handler configured"))
		return Failed
	}
	if err := b.HandleUser(b.Provider, token, userInfo, w, r); err != nil {
		b.fail(w, r, err)
		return Failed
	}
	return Authenticated
}

func (b *BaseOAuth2) checkState(w http.ResponseWriter, r *http.Request) error {
	cookie, _ := r.Cookie(stateCookieName)
	clearStateCookie(w)
	if cookie == nil || cookie.Value == "" {
		return fmt.Errorf("%w: missing state cookie", ErrStateMismatch)
	}
	nonce := r.FormValue("state")
	if b.State != nil {
		var err error
		if nonce, err = b.State.Verify(nonce); err != nil {
			return fmt.Errorf("%w: %w", ErrStateMismatch, err)
		}
	}
	if nonce != cookie.Value {
		return ErrStateMismatch
	}
	return nil
}

func (b *BaseOAuth2) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	client := b.oauthConfig.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from %s: %w", b.Provider, err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned %d: %s", response.StatusCode, contents)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return normalizeUserInfo(userInfo, b.IDField)
}

func (b *BaseOAuth2) exchangeContext(ctx context.Context) context.Context {
	if b.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

func (b *BaseOAuth2) fail(w http.ResponseWriter, r *http.Request, err error) {
	b.logger().Info("oauth login failed", "provider", b.Provider, "state", Failed, "err", err)
	if b.HandleFailure != nil {
		b.HandleFailure(b.Provider, err, w, r)
		return
	}
	http.Redirect(w, r, b.FailureURL, http.StatusFound)
}

func (b *BaseOAuth2) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    stateCookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}
