package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	MFATokenTTL          time.Duration
	MFAIssuer            string
	MaxFailedLogins      int
	LockoutDuration      time.Duration
	BackupCodeCount      int
}

// ClientInfo is the caller metadata attached to audit records and sessions.
type ClientInfo struct {
	IPAddress *string
	UserAgent *string
}

type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email string, token string) error
	SendPasswordResetEmail(ctx context.Context, email string, token string) error
	SendMFAEnabledEmail(ctx context.Context, email string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

// SecretCipher encrypts MFA secrets at rest.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type MFAProvider interface {
	GenerateSecret() (string, error)
	QRCodeURL(email string, issuer string, secret string) (string, error)
	ValidateCode(secret string, code string) bool
}

// MFATokenIssuer hands the pending-login state to the client as a short-lived
// signed token, so no session exists until the MFA challenge completes.
type MFATokenIssuer interface {
	IssueMFAToken(userID string) (string, time.Duration, error)
	ParseMFAToken(token string) (string, error)
}

type AccessTokenIssuer interface {
	IssueAccessToken(userID string, role string, sessionID string) (string, time.Duration, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
