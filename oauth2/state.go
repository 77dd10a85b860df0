package oauth2

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateIssuer = "secretshare"

// StateSigner wraps the state nonce in a short lived HS256 token so a
// callback can only complete a flow this server started.
type StateSigner struct {
	Secret []byte
	TTL    time.Duration
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{Secret: []byte(secret), TTL: stateCookieTTL}
}

// Sign returns the signed state for nonce.
func (s *StateSigner) Sign(nonce string) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("state secret not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   nonce,
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl())),
	})
	return token.SignedString(s.Secret)
}

// Verify checks the signature and expiry of state and returns its nonce.
func (s *StateSigner) Verify(state string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("parse state: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("state has no nonce")
	}
	return claims.Subject, nil
}

func (s *StateSigner) ttl() time.Duration {
	if s.TTL <= 0 {
		return stateCookieTTL
	}
	return s.TTL
}
