// Package accounts provides the credential and session lifecycle for an
// e-commerce backend: registration with email-verified activation, login,
// refresh-token rotation, logout, and password recovery.
//
// Account lifecycle:
//   - Registration creates an unverified account and emails a six-character
//     one-time code. The account cannot log in until VerifyOTP consumes the
//     code. Every recovery flow reuses the same code mechanism with the same
//     expiry rules.
//   - Login validates credentials before verification state, so the endpoint
//     never reveals whether an email is registered.
//
// Token rotation:
//   - Access and refresh tokens are signed with separate secrets. Each
//     refresh token carries a rotation identifier (jti) and the account
//     stores exactly one current identifier. Login and Refresh both rotate
//     it, which revokes every previously issued refresh token; Logout clears
//     it, revoking them all.
//
// HTTP surface:
//   - AuthController exposes the flows as a JSON API over go-router, with
//     tokens delivered both in response bodies and as httpOnly cookies. The
//     jwtware middleware handles extraction, validation, and role gating;
//     the Gate resolves validated tokens back into store-backed accounts.
package accounts
