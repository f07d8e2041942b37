package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey        []byte
	refreshSigningKey []byte
	tokenExpiration   int
	refreshExpiration int
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance. Expirations are hours.
func NewTokenService(cfg Config, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:        []byte(cfg.GetSigningKey()),
		refreshSigningKey: []byte(cfg.GetRefreshSigningKey()),
		tokenExpiration:   cfg.GetTokenExpiration(),
		refreshExpiration: cfg.GetRefreshTokenExpiration(),
		issuer:            cfg.GetIssuer(),
		audience:          cfg.GetAudience(),
		logger:            logger,
	}
}

// GenerateAccessToken creates a signed access token bound to the identity's
// email, id and role.
func (ts *TokenServiceImpl) GenerateAccessToken(identity Identity) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour)),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserRole:  UserRole(identity.Role()),
	}

	return ts.signClaims(claims, ts.signingKey)
}

// GenerateRefreshToken creates a signed refresh token whose jti is the
// rotation identifier persisted on the account. The token stays valid only
// while that identifier matches the stored value.
func (ts *TokenServiceImpl) GenerateRefreshToken(identity Identity, refreshTokenID string) (string, error) {
	if refreshTokenID == "" {
		return "", errors.New("refresh token identifier must not be empty", errors.CategoryInternal)
	}

	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			ID:        refreshTokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.refreshExpiration) * time.Hour)),
		},
		UID:      identity.ID(),
		UserRole: UserRole(identity.Role()),
	}

	return ts.signClaims(claims, ts.refreshSigningKey)
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims, key []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// ValidateAccessToken parses and validates an access token string.
func (ts *TokenServiceImpl) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return ts.validate(tokenString, ts.signingKey)
}

// ValidateRefreshToken parses and validates a refresh token string. The jti
// comparison against the stored identifier happens at the authorization gate,
// not here; this only proves signature and expiry.
func (ts *TokenServiceImpl) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	return ts.validate(tokenString, ts.refreshSigningKey)
}

func (ts *TokenServiceImpl) validate(tokenString string, key []byte) (*JWTClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnableToMapClaims
}
