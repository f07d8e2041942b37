package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// SessionConfig is the concrete configuration constructed once at startup
// and handed to the session service and token issuer. Secrets and lifetimes
// have no embedded defaults; a missing value is a startup failure, never a
// per-request one.
type SessionConfig struct {
	SigningKey             string   `json:"-" koanf:"signing_key"`
	RefreshSigningKey      string   `json:"-" koanf:"refresh_signing_key"`
	TokenExpiration        int      `json:"token_expiration" koanf:"token_expiration"`
	RefreshTokenExpiration int      `json:"refresh_token_expiration" koanf:"refresh_token_expiration"`
	OTPExpirationMinutes   int      `json:"otp_expiration_minutes" koanf:"otp_expiration_minutes"`
	Issuer                 string   `json:"issuer" koanf:"issuer"`
	Audience               []string `json:"audience" koanf:"audience"`
	ContextKey             string   `json:"context_key" koanf:"context_key"`
	TokenLookup            string   `json:"token_lookup" koanf:"token_lookup"`
	AuthScheme             string   `json:"auth_scheme" koanf:"auth_scheme"`
}

var _ Config = (*SessionConfig)(nil)

// Validate enforces the fail-fast startup invariant.
func (c *SessionConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningKey, validation.Required),
		validation.Field(&c.RefreshSigningKey, validation.Required),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.RefreshTokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.OTPExpirationMinutes, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "incomplete session configuration")
	}

	if c.SigningKey == c.RefreshSigningKey {
		return errors.New("access and refresh signing keys must differ", errors.CategoryValidation)
	}

	return nil
}

func (c *SessionConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c *SessionConfig) GetRefreshSigningKey() string {
	return c.RefreshSigningKey
}

// GetTokenExpiration is the access token lifetime in hours.
func (c *SessionConfig) GetTokenExpiration() int {
	return c.TokenExpiration
}

// GetRefreshTokenExpiration is the refresh token lifetime in hours.
func (c *SessionConfig) GetRefreshTokenExpiration() int {
	return c.RefreshTokenExpiration
}

func (c *SessionConfig) GetOTPExpirationMinutes() int {
	return c.OTPExpirationMinutes
}

func (c *SessionConfig) GetIssuer() string {
	return c.Issuer
}

func (c *SessionConfig) GetAudience() []string {
	return c.Audience
}

func (c *SessionConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c *SessionConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "cookie:accessToken,header:Authorization"
	}
	return c.TokenLookup
}

func (c *SessionConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}
