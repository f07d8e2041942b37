package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read side of a validated token.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	RefreshTokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claims payload for both token kinds. Access
// tokens carry {email, sub, role}; refresh tokens carry {sub, jti, role}
// where jti is the rotation identifier compared against the account's stored
// value on every refresh.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string   `json:"uid,omitempty"`
	UserEmail string   `json:"email,omitempty"`
	UserRole  UserRole `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim; empty on refresh tokens.
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return string(c.UserRole)
}

// RefreshTokenID returns the rotation identifier (jti); empty on access tokens.
func (c *JWTClaims) RefreshTokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
