package accounts

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateAccount = "account_duplicate"
	TextCodeAccountNotFound  = "account_not_found"
	TextCodeAlreadyVerified  = "account_already_verified"
	TextCodeNotVerified      = "account_not_verified"
	TextCodeInvalidOTP       = "otp_invalid_or_expired"
	TextCodeOTPDelivery      = "otp_delivery_failed"
	TextCodeBadCredentials   = "credentials_invalid"
	TextCodeTokenExpired     = "token_expired"
	TextCodeTokenMalformed   = "token_malformed"
	TextCodeUnauthenticated  = "session_unauthenticated"
	TextCodeForbidden        = "session_forbidden"
)

// ErrDuplicateAccount is returned when registering an email that already exists.
var ErrDuplicateAccount = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(errors.CodeConflict)

// ErrIdentityNotFound is the error we return for non found accounts
var ErrIdentityNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrAlreadyVerified is returned when verifying an account that is already verified.
var ErrAlreadyVerified = errors.New("account already verified", errors.CategoryValidation).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeBadRequest)

// ErrNotVerified is returned on login before the email has been verified.
var ErrNotVerified = errors.New("email not verified", errors.CategoryAuth).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeForbidden)

// ErrInvalidOTP is returned when a one-time code does not match or has expired.
// The stored code stays in place so the caller may retry before expiry.
var ErrInvalidOTP = errors.New("invalid or expired one-time code", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidOTP).
	WithCode(errors.CodeBadRequest)

// ErrOTPDelivery is returned when the notifier fails to deliver a code. The
// account mutation that preceded the send has already committed.
var ErrOTPDelivery = errors.New("failed to deliver one-time code", errors.CategoryOperation).
	WithTextCode(TextCodeOTPDelivery).
	WithCode(errors.CodeInternal)

// ErrMismatchedHashAndPassword is the single externally visible credential
// failure: a missing account and a wrong password both collapse to it so the
// login endpoint cannot be used to probe which emails exist.
var ErrMismatchedHashAndPassword = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeBadCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail signature or structural checks.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated is the terminal failure of the token validation gate.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is the terminal failure of the role gate.
var ErrForbidden = errors.New("insufficient role", errors.CategoryAuth).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString rejects empty passwords before they reach the hasher.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
