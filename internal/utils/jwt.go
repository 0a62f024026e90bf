// Package utils mints the bearer tokens accepted by the JWT middleware.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT access token and its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"exp"`
}

// NewAccessToken builds and signs an HS256 JWT whose subject is userID.
// Authentication proper lives outside this service; the token is the only
// identity it trusts.
func NewAccessToken(secret string, userID uint64, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("empty signing secret")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
