package accounts_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"github.com/mercatto/go-accounts"
)

// MockUsers mocks the account repository. Only the credential operations are
// implemented; anything else reaching the embedded nil interface is a test
// bug and panics.
type MockUsers struct {
	mock.Mock
	accounts.Users
}

func (m *MockUsers) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) FindByID(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) CreateAccount(ctx context.Context, record *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

// CreateAccountTx echoes the input record when the expectation configures a
// nil record and a nil error, mirroring what the real repository returns.
func (m *MockUsers) CreateAccountTx(ctx context.Context, tx bun.IDB, record *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		if args.Error(1) == nil {
			return record, nil
		}
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) (*accounts.User, error) {
	args := m.Called(ctx, id, code, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) MarkVerified(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (*accounts.User, error) {
	args := m.Called(ctx, id, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) ResetPasswordHash(ctx context.Context, id uuid.UUID, hash string) (*accounts.User, error) {
	args := m.Called(ctx, id, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

func (m *MockUsers) SetRefreshTokenID(ctx context.Context, id uuid.UUID, refreshTokenID string) (*accounts.User, error) {
	args := m.Called(ctx, id, refreshTokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.User), args.Error(1)
}

// MockRepoManager wires a MockUsers behind the RepositoryManager contract.
// RunInTx executes the function directly; the mocked repository ignores the
// transaction handle anyway.
type MockRepoManager struct {
	users *MockUsers
}

func NewMockRepoManager(users *MockUsers) *MockRepoManager {
	return &MockRepoManager{users: users}
}

func (m *MockRepoManager) Users() accounts.Users {
	return m.users
}

func (m *MockRepoManager) Validate() error {
	return nil
}

func (m *MockRepoManager) MustValidate() {}

func (m *MockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// MockNotifier implements accounts.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendOneTimeCode(ctx context.Context, address, code, subject string) error {
	args := m.Called(ctx, address, code, subject)
	return args.Error(0)
}

func testConfig() *accounts.SessionConfig {
	return &accounts.SessionConfig{
		SigningKey:             "test-access-secret",
		RefreshSigningKey:      "test-refresh-secret",
		TokenExpiration:        1,
		RefreshTokenExpiration: 168,
		OTPExpirationMinutes:   10,
		Issuer:                 "test-issuer",
		Audience:               []string{"test-audience"},
	}
}

func testIdentity(id uuid.UUID, role accounts.UserRole) accounts.Identity {
	u := &accounts.User{
		ID:       id,
		Username: "tester",
		Email:    "tester@example.com",
		Role:     role,
	}
	return u.Identity()
}
