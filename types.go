package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// CredentialStore is the persistence contract for account records. Every
// mutation is a single-statement update so concurrent writers on the same
// account never go through a read-modify-write cycle.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateAccount(ctx context.Context, user *User) (*User, error)
	SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) (*User, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (*User, error)
	ResetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (*User, error)
	SetRefreshTokenID(ctx context.Context, id uuid.UUID, refreshTokenID string) (*User, error)
}

// Notifier delivers a one-time code to an address. Delivery failures are
// surfaced to the caller; they are never retried here and they do not roll
// back account mutations that already committed.
type Notifier interface {
	SendOneTimeCode(ctx context.Context, address, code, subject string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// TokenService mints and validates the two session credentials: short lived
// access tokens and longer lived rotating refresh tokens. Each kind carries
// its own signing secret and lifetime.
type TokenService interface {
	GenerateAccessToken(identity Identity) (string, error)
	GenerateRefreshToken(identity Identity, refreshTokenID string) (string, error)
	ValidateAccessToken(tokenString string) (*JWTClaims, error)
	ValidateRefreshToken(tokenString string) (*JWTClaims, error)
}

// Config holds session options
type Config interface {
	GetSigningKey() string
	GetRefreshSigningKey() string
	GetTokenExpiration() int
	GetRefreshTokenExpiration() int
	GetOTPExpirationMinutes() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
