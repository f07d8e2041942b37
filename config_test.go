package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercatto/go-accounts"
)

func TestSessionConfigValidate(t *testing.T) {
	t.Run("complete config passes", func(t *testing.T) {
		assert.NoError(t, testConfig().Validate())
	})

	t.Run("missing signing key fails", func(t *testing.T) {
		cfg := testConfig()
		cfg.SigningKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing refresh signing key fails", func(t *testing.T) {
		cfg := testConfig()
		cfg.RefreshSigningKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("identical secrets fail", func(t *testing.T) {
		cfg := testConfig()
		cfg.RefreshSigningKey = cfg.SigningKey
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero lifetimes fail", func(t *testing.T) {
		cfg := testConfig()
		cfg.TokenExpiration = 0
		assert.Error(t, cfg.Validate())

		cfg = testConfig()
		cfg.RefreshTokenExpiration = 0
		assert.Error(t, cfg.Validate())

		cfg = testConfig()
		cfg.OTPExpirationMinutes = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestSessionConfigDefaults(t *testing.T) {
	cfg := &accounts.SessionConfig{}

	assert.Equal(t, "user", cfg.GetContextKey())
	assert.Equal(t, "cookie:accessToken,header:Authorization", cfg.GetTokenLookup())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
}

func TestNewSessionServiceFailFast(t *testing.T) {
	store := &MockUsers{}
	repo := NewMockRepoManager(store)
	notifier := &MockNotifier{}

	t.Run("valid config constructs", func(t *testing.T) {
		svc, err := accounts.NewSessionService(repo, notifier, testConfig())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("incomplete config refuses to construct", func(t *testing.T) {
		cfg := testConfig()
		cfg.RefreshSigningKey = ""

		svc, err := accounts.NewSessionService(repo, notifier, cfg)
		assert.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("missing OTP lifetime refuses to construct", func(t *testing.T) {
		cfg := testConfig()
		cfg.OTPExpirationMinutes = 0

		svc, err := accounts.NewSessionService(repo, notifier, cfg)
		assert.Error(t, err)
		assert.Nil(t, svc)
	})
}
