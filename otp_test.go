package accounts_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercatto/go-accounts"
)

var otpFormat = regexp.MustCompile(`^[0-9A-F]{6}$`)

func TestGenerateOTP(t *testing.T) {
	seen := map[string]bool{}

	for i := 0; i < 50; i++ {
		code, err := accounts.GenerateOTP()
		require.NoError(t, err)
		assert.True(t, otpFormat.MatchString(code), "unexpected code format: %q", code)
		seen[code] = true
	}

	// 50 draws from a 16M space colliding down to a handful would mean the
	// generator is broken, not unlucky.
	assert.Greater(t, len(seen), 40)
}

func TestOTPExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(10*time.Minute), accounts.OTPExpiry(now, 10))
}

func TestVerifyOTPCode(t *testing.T) {
	now := time.Now()
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name      string
		stored    string
		expiresAt *time.Time
		supplied  string
		want      bool
	}{
		{
			name:      "matching code before expiry",
			stored:    "A1B2C3",
			expiresAt: &future,
			supplied:  "A1B2C3",
			want:      true,
		},
		{
			name:      "comparison is case-insensitive",
			stored:    "A1B2C3",
			expiresAt: &future,
			supplied:  "a1b2c3",
			want:      true,
		},
		{
			name:      "wrong code",
			stored:    "A1B2C3",
			expiresAt: &future,
			supplied:  "FFFFFF",
			want:      false,
		},
		{
			name:      "expired code",
			stored:    "A1B2C3",
			expiresAt: &past,
			supplied:  "A1B2C3",
			want:      false,
		},
		{
			name:      "no code stored",
			stored:    "",
			expiresAt: &future,
			supplied:  "",
			want:      false,
		},
		{
			name:      "code without expiry",
			stored:    "A1B2C3",
			expiresAt: nil,
			supplied:  "A1B2C3",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := accounts.VerifyOTPCode(tt.stored, tt.expiresAt, tt.supplied, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyOTPCodeExpiryBoundary(t *testing.T) {
	now := time.Now()

	// A code expiring exactly now is already unusable.
	assert.False(t, accounts.VerifyOTPCode("A1B2C3", &now, "A1B2C3", now))
}
