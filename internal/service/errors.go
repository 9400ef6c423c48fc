package service

import "errors"

// Client errors carry deliberately generic messages. Login and token
// rejections must not reveal whether an account exists or is locked.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailNotVerified       = errors.New("email not verified")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrTokenExpired           = errors.New("invalid or expired token")
	ErrInvalidMFACode         = errors.New("invalid code")
	ErrMFANotEnabled          = errors.New("mfa not enabled")
	ErrMFAAlreadyEnabled      = errors.New("mfa already enabled")
	ErrMFASetupNotStarted     = errors.New("mfa setup not started")
	ErrTooManyAttempts        = errors.New("too many attempts")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionAlreadyRevoked  = errors.New("session already revoked")
	ErrUserNotFound           = errors.New("user not found")
)

// Security-critical conditions. ErrTokenReused is recoverable by design and
// triggers fleet-wide revocation before it surfaces. ErrMFASecretMissing
// means an account claims MFA with no stored secret, which is data
// corruption, not a retryable user error.
var (
	ErrTokenReused      = errors.New("token reuse detected, all sessions revoked")
	ErrMFASecretMissing = errors.New("mfa secret missing for mfa-enabled account")
)
