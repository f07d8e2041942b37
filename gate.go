package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Gate resolves presented tokens into stored accounts and enforces role
// restrictions. Every failure mode on the token path collapses to
// ErrUnauthenticated so a probing caller learns nothing about which check
// rejected them; role failures alone surface as ErrForbidden.
type Gate struct {
	tokens TokenService
	store  CredentialStore
	logger Logger
}

func NewGate(tokens TokenService, store CredentialStore) *Gate {
	return &Gate{
		tokens: tokens,
		store:  store,
		logger: defLogger{},
	}
}

func (g *Gate) WithLogger(logger Logger) *Gate {
	g.logger = logger
	return g
}

// ResolveAccessToken validates a raw access token and loads the account it
// names. The account, not the claims, is the source of truth for the role.
func (g *Gate) ResolveAccessToken(ctx context.Context, raw string) (*User, error) {
	claims, err := g.validate(raw, g.tokens.ValidateAccessToken)
	if err != nil {
		return nil, err
	}
	return g.lookup(ctx, claims)
}

// ResolveRefreshToken additionally requires the token's rotation identifier
// to match the one stored on the account. A token from before the latest
// rotation, or one presented after logout, fails here even though its
// signature and expiry are still valid.
func (g *Gate) ResolveRefreshToken(ctx context.Context, raw string) (*User, error) {
	claims, err := g.validate(raw, g.tokens.ValidateRefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := g.lookup(ctx, claims)
	if err != nil {
		return nil, err
	}

	tokenID := claims.RefreshTokenID()
	if tokenID == "" || user.RefreshTokenID == "" || tokenID != user.RefreshTokenID {
		g.logger.Info("Gate rejected superseded or revoked refresh token", "user_id", user.ID)
		return nil, ErrUnauthenticated
	}

	return user, nil
}

// RequireRoles checks the account's role against the allowed set. An empty
// set imposes no restriction.
func (g *Gate) RequireRoles(user *User, roles ...UserRole) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if !RoleAllowed(user.Role, roles...) {
		return ErrForbidden
	}
	return nil
}

// ResolveSubject loads the account named by a validated token's subject.
// Used by the HTTP middleware after signature and expiry checks pass.
func (g *Gate) ResolveSubject(ctx context.Context, subject string) (*User, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := g.store.FindByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve token subject")
	}

	return user, nil
}

func (g *Gate) validate(raw string, check func(string) (*JWTClaims, error)) (*JWTClaims, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := check(raw)
	if err != nil {
		g.logger.Info("Gate rejected token", "error", err)
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

func (g *Gate) lookup(ctx context.Context, claims *JWTClaims) (*User, error) {
	return g.ResolveSubject(ctx, claims.UserID())
}
