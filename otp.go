package accounts

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const otpByteLength = 3

// GenerateOTP returns a short random one-time code: 6 uppercase hex
// characters, enough for a code typed from an email.
func GenerateOTP() (string, error) {
	buf := make([]byte, otpByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate one-time code")
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// OTPExpiry computes the expiry for a freshly issued code.
func OTPExpiry(now time.Time, minutes int) time.Time {
	return now.Add(time.Duration(minutes) * time.Minute)
}

// VerifyOTPCode checks a supplied code against the stored code and expiry.
// Comparison is case-insensitive. A missing code, a missing expiry, or an
// expiry at or before now all fail.
func VerifyOTPCode(stored string, expiresAt *time.Time, supplied string, now time.Time) bool {
	if stored == "" || expiresAt == nil {
		return false
	}
	if !strings.EqualFold(stored, supplied) {
		return false
	}
	return expiresAt.After(now)
}
