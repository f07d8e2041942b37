package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the ordinary storefront account
	RoleUser UserRole = "user"
	// RoleAdmin can manage catalog and order resources
	RoleAdmin UserRole = "admin"
	// RoleSuperAdmin can additionally manage admin accounts
	RoleSuperAdmin UserRole = "superadmin"
)

// User is the account model. The credential fields (password hash, one-time
// code, refresh token identifier) never serialize; Sanitized strips them
// before a record leaves the store boundary.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	IsVerified     bool       `bun:"is_verified" json:"is_verified"`
	OTPCode        string     `bun:"otp_code" json:"-"`
	OTPExpiresAt   *time.Time `bun:"otp_expires_at,nullzero" json:"-"`
	RefreshTokenID string     `bun:"refresh_token_id" json:"-"`
	Role           UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Sanitized returns a copy safe to hand to the transport layer: no password
// hash, no pending one-time code, no refresh token identifier.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	out.OTPCode = ""
	out.OTPExpiresAt = nil
	out.RefreshTokenID = ""
	return &out
}

// HasPendingOTP reports whether the record carries a usable one-time code.
// Code and expiry travel together; one without the other counts as absent.
func (u *User) HasPendingOTP() bool {
	return u != nil && u.OTPCode != "" && u.OTPExpiresAt != nil
}

// Identity returns the token-facing view of the account.
func (u *User) Identity() Identity {
	return accountIdentity{
		id:       u.ID.String(),
		username: u.Username,
		email:    u.Email,
		role:     string(u.Role),
	}
}

type accountIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (a accountIdentity) ID() string {
	return a.id
}

func (a accountIdentity) Username() string {
	return a.username
}

func (a accountIdentity) Email() string {
	return a.email
}

func (a accountIdentity) Role() string {
	return a.role
}

var _ Identity = accountIdentity{}
