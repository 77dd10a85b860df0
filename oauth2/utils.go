package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// HandleUserFunc receives the provider profile after a successful exchange.
// userInfo["id"] always holds the provider user id as a string.
type HandleUserFunc func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) error

// HandleFailureFunc writes the response for a failed login.
type HandleFailureFunc func(provider string, err error, w http.ResponseWriter, r *http.Request)

const stateCookieTTL = 10 * time.Minute

func generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("error generating oauth state", "err", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(stateCookieTTL),
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}

// OauthRedirector returns a handler that sets the state cookie and redirects
// to the consent screen of config's provider using the raw nonce as state.
func OauthRedirector(config *oauth2.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := generateStateOauthCookie(w)
		http.Redirect(w, r, config.AuthCodeURL(state), http.StatusFound)
	}
}

// normalizeUserInfo copies the provider id out of idField into "id" as a string.
func normalizeUserInfo(userInfo map[string]any, idField string) (map[string]any, error) {
	if userInfo == nil {
		return nil, fmt.Errorf("empty user info")
	}
	var id string
	switch v := userInfo[idField].(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
	default:
		id = fmt.Sprint(v)
	}
	if id == "" {
		return nil, fmt.Errorf("user info has no %q field", idField)
	}
	userInfo["id"] = id
	return userInfo, nil
}
