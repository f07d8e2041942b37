package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mercatto/go-accounts"
)

func newSessionService(t *testing.T) (*accounts.SessionService, *MockUsers, *MockNotifier) {
	t.Helper()

	store := &MockUsers{}
	notifier := &MockNotifier{}

	svc, err := accounts.NewSessionService(NewMockRepoManager(store), notifier, testConfig())
	require.NoError(t, err)

	return svc, store, notifier
}

func verifiedUser(t *testing.T, email, password string) *accounts.User {
	t.Helper()

	hash, err := accounts.HashPassword(password)
	require.NoError(t, err)

	return &accounts.User{
		ID:           uuid.New(),
		Username:     "tester",
		Email:        email,
		PasswordHash: hash,
		IsVerified:   true,
		Role:         accounts.RoleUser,
	}
}

func assertTextCode(t *testing.T, err error, textCode string) {
	t.Helper()

	var richErr *errors.Error
	require.ErrorAs(t, err, &richErr)
	assert.Equal(t, textCode, richErr.TextCode)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	email := "new@example.com"

	t.Run("creates an unverified account with a pending code", func(t *testing.T) {
		svc, store, notifier := newSessionService(t)

		var created *accounts.User
		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())
		store.On("CreateAccountTx", mock.Anything, mock.Anything, mock.AnythingOfType("*accounts.User")).
			Run(func(args mock.Arguments) {
				created = args.Get(2).(*accounts.User)
			}).
			Return(nil, nil)

		var sentCode string
		notifier.On("SendOneTimeCode", mock.Anything, email, mock.AnythingOfType("string"), "Email verification code").
			Run(func(args mock.Arguments) {
				sentCode = args.String(2)
			}).
			Return(nil)

		user, err := svc.Register(ctx, "newbie", email, "a very long password")
		require.NoError(t, err)
		require.NotNil(t, user)

		// the handed-back record is sanitized
		assert.False(t, user.IsVerified)
		assert.Empty(t, user.PasswordHash)
		assert.Empty(t, user.OTPCode)

		// the stored record carries the credentials
		require.NotNil(t, created)
		assert.True(t, created.HasPendingOTP())
		assert.Equal(t, accounts.RoleUser, created.Role)
		assert.Equal(t, created.OTPCode, sentCode)
		assert.NoError(t, accounts.ComparePasswordAndHash("a very long password", created.PasswordHash))

		store.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, store, notifier := newSessionService(t)

		store.On("FindByEmail", mock.Anything, email).Return(&accounts.User{Email: email}, nil)

		user, err := svc.Register(ctx, "newbie", email, "a very long password")
		assert.Nil(t, user)
		assert.Equal(t, accounts.ErrDuplicateAccount, err)

		notifier.AssertNotCalled(t, "SendOneTimeCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delivery failure keeps the account", func(t *testing.T) {
		svc, store, notifier := newSessionService(t)

		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())
		store.On("CreateAccountTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		notifier.On("SendOneTimeCode", mock.Anything, email, mock.Anything, mock.Anything).
			Return(errors.New("smtp is down", errors.CategoryOperation))

		user, err := svc.Register(ctx, "newbie", email, "a very long password")

		// the account committed; the caller learns delivery failed
		require.NotNil(t, user)
		require.Error(t, err)
		assertTextCode(t, err, accounts.TextCodeOTPDelivery)
	})

	t.Run("empty password", func(t *testing.T) {
		svc, store, _ := newSessionService(t)

		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())

		user, err := svc.Register(ctx, "newbie", email, "")
		assert.Nil(t, user)
		assert.Error(t, err)

		store.AssertNotCalled(t, "CreateAccountTx", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()
	email := "pending@example.com"

	pendingUser := func(code string, expiresAt time.Time) *accounts.User {
		return &accounts.User{
			ID:           uuid.New(),
			Email:        email,
			IsVerified:   false,
			OTPCode:      code,
			OTPExpiresAt: &expiresAt,
		}
	}

	t.Run("consumes a valid code", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := pendingUser("A1B2C3", time.Now().Add(5*time.Minute))

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)
		store.On("MarkVerified", mock.Anything, user.ID).Return(user, nil)

		// code comparison ignores case
		assert.NoError(t, svc.VerifyOTP(ctx, email, "a1b2c3"))
		store.AssertExpectations(t)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())

		err := svc.VerifyOTP(ctx, email, "A1B2C3")
		assert.Equal(t, accounts.ErrIdentityNotFound, err)
	})

	t.Run("already verified", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := pendingUser("A1B2C3", time.Now().Add(5*time.Minute))
		user.IsVerified = true

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		err := svc.VerifyOTP(ctx, email, "A1B2C3")
		assert.Equal(t, accounts.ErrAlreadyVerified, err)
	})

	t.Run("wrong code leaves the pending code intact", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := pendingUser("A1B2C3", time.Now().Add(5*time.Minute))

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		err := svc.VerifyOTP(ctx, email, "FFFFFF")
		assert.Equal(t, accounts.ErrInvalidOTP, err)
		store.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)

		// the same stored code still verifies afterwards
		store.On("MarkVerified", mock.Anything, user.ID).Return(user, nil)
		assert.NoError(t, svc.VerifyOTP(ctx, email, "A1B2C3"))
	})

	t.Run("expired code", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := pendingUser("A1B2C3", time.Now().Add(-time.Minute))

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		err := svc.VerifyOTP(ctx, email, "A1B2C3")
		assert.Equal(t, accounts.ErrInvalidOTP, err)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	email := "buyer@example.com"
	password := "a very long password"

	t.Run("unknown email reports bad credentials", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())

		result, err := svc.Login(ctx, email, password)
		assert.Nil(t, result)
		assert.Equal(t, accounts.ErrMismatchedHashAndPassword, err)
	})

	t.Run("wrong password reports bad credentials", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := verifiedUser(t, email, password)
		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		result, err := svc.Login(ctx, email, "wrong password")
		assert.Nil(t, result)
		assert.Equal(t, accounts.ErrMismatchedHashAndPassword, err)
	})

	t.Run("credentials are checked before verification state", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := verifiedUser(t, email, password)
		user.IsVerified = false
		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		// wrong password on an unverified account must not reveal the
		// account's verification state
		_, err := svc.Login(ctx, email, "wrong password")
		assert.Equal(t, accounts.ErrMismatchedHashAndPassword, err)

		// right password, still unverified
		_, err = svc.Login(ctx, email, password)
		assert.Equal(t, accounts.ErrNotVerified, err)
	})

	t.Run("issues a fresh pair and rotates the refresh identifier", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := verifiedUser(t, email, password)
		user.RefreshTokenID = "previous-rotation-id"

		var rotatedTo string
		store.On("FindByEmail", mock.Anything, email).Return(user, nil)
		store.On("SetRefreshTokenID", mock.Anything, user.ID, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) {
				rotatedTo = args.String(2)
			}).
			Return(user, nil)

		result, err := svc.Login(ctx, email, password)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.NotEqual(t, "previous-rotation-id", rotatedTo)

		// the refresh token's jti is the freshly stored identifier
		claims, err := svc.TokenService().ValidateRefreshToken(result.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, rotatedTo, claims.RefreshTokenID())
		assert.Equal(t, user.ID.String(), claims.Subject())

		// the handed-back account is sanitized
		assert.Empty(t, result.User.PasswordHash)
		assert.Empty(t, result.User.RefreshTokenID)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates on every call", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := verifiedUser(t, "buyer@example.com", "a very long password")

		var rotations []string
		store.On("SetRefreshTokenID", mock.Anything, user.ID, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) {
				rotations = append(rotations, args.String(2))
			}).
			Return(user, nil)

		first, err := svc.Refresh(ctx, user)
		require.NoError(t, err)

		second, err := svc.Refresh(ctx, user)
		require.NoError(t, err)

		require.Len(t, rotations, 2)
		assert.NotEqual(t, rotations[0], rotations[1])
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	})

	t.Run("nil user", func(t *testing.T) {
		svc, _, _ := newSessionService(t)

		pair, err := svc.Refresh(ctx, nil)
		assert.Nil(t, pair)
		assert.Equal(t, accounts.ErrIdentityNotFound, err)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the stored rotation identifier", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		id := uuid.New()

		store.On("SetRefreshTokenID", mock.Anything, id, "").Return(&accounts.User{ID: id}, nil)

		assert.NoError(t, svc.Logout(ctx, id))
		store.AssertExpectations(t)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		id := uuid.New()

		store.On("SetRefreshTokenID", mock.Anything, id, "").Return(nil, repository.NewRecordNotFound())

		err := svc.Logout(ctx, id)
		assert.Equal(t, accounts.ErrIdentityNotFound, err)
	})
}

func TestForgotPassword(t *testing.T) {
	ctx := context.Background()
	email := "buyer@example.com"

	t.Run("issues and delivers a fresh code", func(t *testing.T) {
		svc, store, notifier := newSessionService(t)
		user := verifiedUser(t, email, "a very long password")

		var code string
		var expiry time.Time
		store.On("FindByEmail", mock.Anything, email).Return(user, nil)
		store.On("SetOTP", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
			Run(func(args mock.Arguments) {
				code = args.String(2)
				expiry = args.Get(3).(time.Time)
			}).
			Return(user, nil)
		notifier.On("SendOneTimeCode", mock.Anything, email, mock.AnythingOfType("string"), "Password reset code").
			Return(nil)

		require.NoError(t, svc.ForgotPassword(ctx, email))

		assert.Len(t, code, 6)
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiry, time.Minute)
		notifier.AssertExpectations(t)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())

		err := svc.ForgotPassword(ctx, email)
		assert.Equal(t, accounts.ErrIdentityNotFound, err)
	})

	t.Run("delivery failure surfaces", func(t *testing.T) {
		svc, store, notifier := newSessionService(t)
		user := verifiedUser(t, email, "a very long password")

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)
		store.On("SetOTP", mock.Anything, user.ID, mock.Anything, mock.Anything).Return(user, nil)
		notifier.On("SendOneTimeCode", mock.Anything, email, mock.Anything, mock.Anything).
			Return(errors.New("smtp is down", errors.CategoryOperation))

		err := svc.ForgotPassword(ctx, email)
		require.Error(t, err)
		assertTextCode(t, err, accounts.TextCodeOTPDelivery)
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	email := "buyer@example.com"

	userWithCode := func(code string, expiresAt time.Time) *accounts.User {
		user := verifiedUser(t, email, "old password value")
		user.OTPCode = code
		user.OTPExpiresAt = &expiresAt
		return user
	}

	t.Run("installs the new hash and consumes the code", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := userWithCode("A1B2C3", time.Now().Add(5*time.Minute))

		var newHash string
		store.On("FindByEmail", mock.Anything, email).Return(user, nil)
		store.On("ResetPasswordHash", mock.Anything, user.ID, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) {
				newHash = args.String(2)
			}).
			Return(user, nil)

		require.NoError(t, svc.ResetPassword(ctx, email, "A1B2C3", "brand new password"))
		assert.NoError(t, accounts.ComparePasswordAndHash("brand new password", newHash))
	})

	t.Run("wrong code", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := userWithCode("A1B2C3", time.Now().Add(5*time.Minute))

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		err := svc.ResetPassword(ctx, email, "FFFFFF", "brand new password")
		assert.Equal(t, accounts.ErrInvalidOTP, err)
		store.AssertNotCalled(t, "ResetPasswordHash", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired code", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := userWithCode("A1B2C3", time.Now().Add(-time.Minute))

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		err := svc.ResetPassword(ctx, email, "A1B2C3", "brand new password")
		assert.Equal(t, accounts.ErrInvalidOTP, err)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	email := "buyer@example.com"
	current := "current password value"

	t.Run("requires the current password", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := verifiedUser(t, email, current)

		store.On("FindByEmail", mock.Anything, email).Return(user, nil)

		err := svc.ChangePassword(ctx, email, "not the current one", "brand new password")
		assert.Equal(t, accounts.ErrMismatchedHashAndPassword, err)
		store.AssertNotCalled(t, "SetPasswordHash", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("replaces the hash", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		user := verifiedUser(t, email, current)

		var newHash string
		store.On("FindByEmail", mock.Anything, email).Return(user, nil)
		store.On("SetPasswordHash", mock.Anything, user.ID, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) {
				newHash = args.String(2)
			}).
			Return(user, nil)

		require.NoError(t, svc.ChangePassword(ctx, email, current, "brand new password"))
		assert.NoError(t, accounts.ComparePasswordAndHash("brand new password", newHash))
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, store, _ := newSessionService(t)
		store.On("FindByEmail", mock.Anything, email).Return(nil, repository.NewRecordNotFound())

		err := svc.ChangePassword(ctx, email, current, "brand new password")
		assert.Equal(t, accounts.ErrIdentityNotFound, err)
	})
}
