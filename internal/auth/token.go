// Package auth issues and verifies the bearer tokens that guard the UI bridge.
package auth

import (
	"strings"
	"time"

	chat_errors "marketplace-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens minted for the local user. An empty secret
// disables verification.
type Verifier struct {
	secret []byte
	userID string
}

func NewVerifier(secret, userID string) *Verifier {
	return &Verifier{secret: []byte(secret), userID: userID}
}

func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Issue mints a token for the local user valid for ttl.
func (v *Verifier) Issue(ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: v.userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   v.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) Parse(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, chat_errors.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, chat_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, chat_errors.ErrUnauthorized
	}
	if v.userID != "" && claims.UserID != v.userID {
		return Claims{}, chat_errors.ErrUnauthorized
	}
	return *claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
