package oauth2

import (
	"os"
	"strings"

	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is the OpenID userinfo endpoint; its "sub" field is the Google user id.
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

type GoogleOAuth2 struct {
	*BaseOAuth2
}

// NewGoogleOAuth2 configures the Google flow. Empty arguments fall back to
// CLIENT_ID, CLIENT_SECRET and GOOGLE_CALLBACK_URL.
func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("GOOGLE_CALLBACK_URL"))
	}

	out := &GoogleOAuth2{
		BaseOAuth2: newBaseOAuth2("google", clientId, clientSecret, callbackUrl, google.Endpoint, []string{"profile"}, handleUser),
	}
	out.UserInfoURL = GoogleUserInfoURL
	out.IDField = "sub"
	return out
}
