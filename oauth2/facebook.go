package oauth2

import (
	"os"
	"strings"

	"golang.org/x/oauth2/facebook"
)

// FacebookUserInfoURL is the Graph API "me" endpoint; its "id" field is the Facebook user id.
const FacebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name"

type FacebookOAuth2 struct {
	*BaseOAuth2
}

// NewFacebookOAuth2 configures the Facebook flow. Empty arguments fall back to
// FACEBOOK_ID, FACEBOOK_SECRET and FACEBOOK_CALLBACK_URL.
func NewFacebookOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *FacebookOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("FACEBOOK_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("FACEBOOK_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("FACEBOOK_CALLBACK_URL"))
	}

	out := &FacebookOAuth2{
		BaseOAuth2: newBaseOAuth2("facebook", clientId, clientSecret, callbackUrl, facebook.Endpoint, nil, handleUser),
	}
	out.UserInfoURL = FacebookUserInfoURL
	return out
}
