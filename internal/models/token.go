package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenClaims is the JWT payload shared by both token kinds. Access tokens
// also carry the username and email for display purposes.
type TokenClaims struct {
	Kind     TokenKind `json:"typ"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the subject of the token.
func (c *TokenClaims) AccountID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenPair is issued on login and on every refresh.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
