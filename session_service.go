package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	verificationSubject  = "Email verification code"
	passwordResetSubject = "Password reset code"
)

// TokenPair is an access/refresh credential pair issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult carries the sanitized account plus its fresh credentials.
type LoginResult struct {
	User *User `json:"user"`
	TokenPair
}

// SessionService orchestrates the account credential lifecycle: registration
// with email-verified activation, login, refresh-token rotation, logout and
// the password recovery flows. It holds no state beyond its collaborators;
// all account state lives in the credential store.
type SessionService struct {
	repo       RepositoryManager
	tokens     TokenService
	notifier   Notifier
	otpMinutes int
	logger     Logger
}

// NewSessionService wires the orchestrator. It refuses to construct on
// incomplete configuration: missing secrets or lifetimes are a startup
// failure, not something to discover on the first request.
func NewSessionService(repo RepositoryManager, notifier Notifier, cfg Config) (*SessionService, error) {
	if v, ok := cfg.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.GetSigningKey() == "" || cfg.GetRefreshSigningKey() == "" {
		return nil, errors.New("signing secrets are not configured", errors.CategoryValidation)
	}
	if cfg.GetTokenExpiration() <= 0 || cfg.GetRefreshTokenExpiration() <= 0 {
		return nil, errors.New("token lifetimes are not configured", errors.CategoryValidation)
	}
	if cfg.GetOTPExpirationMinutes() <= 0 {
		return nil, errors.New("OTP lifetime is not configured", errors.CategoryValidation)
	}

	if notifier == nil {
		notifier = LogNotifier{}
	}

	return &SessionService{
		repo:       repo,
		tokens:     NewTokenService(cfg, defLogger{}),
		notifier:   notifier,
		otpMinutes: cfg.GetOTPExpirationMinutes(),
		logger:     defLogger{},
	}, nil
}

func (s *SessionService) WithLogger(logger Logger) *SessionService {
	s.logger = logger
	return s
}

// WithTokenService overrides the token issuer, e.g. for externally managed keys.
func (s *SessionService) WithTokenService(tokens TokenService) *SessionService {
	s.tokens = tokens
	return s
}

// TokenService returns the token issuer used by this service.
func (s *SessionService) TokenService() TokenService {
	return s.tokens
}

// Register creates an unverified account with a pending one-time code and
// asks the notifier to deliver it. A delivery failure is reported to the
// caller but the account stays created; the user can recover through
// ForgotPassword or by obtaining the code elsewhere.
func (s *SessionService) Register(ctx context.Context, username, email, password string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if _, err := s.repo.Users().FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateAccount
	} else if !errors.IsNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check existing account")
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, err
	}
	expiry := OTPExpiry(time.Now(), s.otpMinutes)

	hash, err := HashPassword(password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, errors.Wrap(richErr, errors.CategoryValidation, "invalid password provided")
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsVerified:   false,
		OTPCode:      code,
		OTPExpiresAt: &expiry,
		Role:         RoleUser,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if user, err = s.repo.Users().CreateAccountTx(ctx, tx, user); err != nil {
			return errors.Wrap(err, errors.CategoryConflict, "could not create account")
		}
		return nil
	})
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "account registration transaction failed")
	}

	if err := s.notifier.SendOneTimeCode(ctx, email, code, verificationSubject); err != nil {
		s.logger.Error("Register failed to deliver verification code", "error", err)
		return user.Sanitized(), errors.Wrap(err, ErrOTPDelivery.Category, ErrOTPDelivery.Message).
			WithTextCode(ErrOTPDelivery.TextCode)
	}

	return user.Sanitized(), nil
}

// VerifyOTP proves email ownership. On success the account becomes verified
// and the code is consumed; on failure the code stays in place so the user
// may retry until expiry.
func (s *SessionService) VerifyOTP(ctx context.Context, email, code string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if !VerifyOTPCode(user.OTPCode, user.OTPExpiresAt, code, time.Now()) {
		return ErrInvalidOTP
	}

	if _, err := s.repo.Users().MarkVerified(ctx, user.ID); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to mark account verified")
	}

	return nil
}

// Login validates credentials, then the verification state, in that order:
// an unverified account with a wrong password reports bad credentials, never
// its own existence. On success a fresh token pair is issued and the
// account's refresh identifier rotates, revoking any previous refresh token.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during login")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	pair, err := s.rotate(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user.Sanitized(), TokenPair: *pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The caller must already
// hold an account resolved by the authorization gate's refresh check, which
// proved the presented token's identifier matches the stored one. Rotation
// happens again here, so each refresh token is good for exactly one call.
func (s *SessionService) Refresh(ctx context.Context, user *User) (*TokenPair, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	return s.rotate(ctx, user)
}

// Logout clears the stored refresh identifier, permanently revoking any
// outstanding refresh token. Idempotent.
func (s *SessionService) Logout(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Users().SetRefreshTokenID(ctx, id, ""); err != nil {
		if errors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke refresh token")
	}
	return nil
}

// ForgotPassword issues a new one-time code for the account-recovery path,
// superseding any previous code, and dispatches it via the notifier.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	expiry := OTPExpiry(time.Now(), s.otpMinutes)

	if _, err := s.repo.Users().SetOTP(ctx, user.ID, code, expiry); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store one-time code")
	}

	if err := s.notifier.SendOneTimeCode(ctx, user.Email, code, passwordResetSubject); err != nil {
		s.logger.Error("ForgotPassword failed to deliver reset code", "error", err)
		return errors.Wrap(err, ErrOTPDelivery.Category, ErrOTPDelivery.Message).
			WithTextCode(ErrOTPDelivery.TextCode)
	}

	return nil
}

// ResetPassword is the recovery path for a user who cannot log in: the
// one-time code authorizes the change, no token required. The code is
// consumed in the same statement that installs the new hash.
func (s *SessionService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if !VerifyOTPCode(user.OTPCode, user.OTPExpiresAt, code, time.Now()) {
		return ErrInvalidOTP
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := s.repo.Users().ResetPasswordHash(ctx, user.ID, hash); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to reset password")
	}

	return nil
}

// ChangePassword re-validates the current password as a second factor even
// though the transport layer already authenticated the caller.
func (s *SessionService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := ComparePasswordAndHash(currentPassword, user.PasswordHash); err != nil {
		return ErrMismatchedHashAndPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := s.repo.Users().SetPasswordHash(ctx, user.ID, hash); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to change password")
	}

	return nil
}

func (s *SessionService) rotate(ctx context.Context, user *User) (*TokenPair, error) {
	identity := user.Identity()

	access, err := s.tokens.GenerateAccessToken(identity)
	if err != nil {
		return nil, err
	}

	refreshID := uuid.NewString()
	refresh, err := s.tokens.GenerateRefreshToken(identity, refreshID)
	if err != nil {
		return nil, err
	}

	// The single point where the previous refresh token becomes unusable.
	if _, err := s.repo.Users().SetRefreshTokenID(ctx, user.ID, refreshID); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to rotate refresh token")
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *SessionService) findByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account")
	}
	return user, nil
}
