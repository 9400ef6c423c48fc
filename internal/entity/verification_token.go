package entity

import (
	"time"

	"github.com/google/uuid"
)

type VerificationType string

const (
	EmailVerify   VerificationType = "email_verify"
	PasswordReset VerificationType = "password_reset"
)

// VerificationToken is a hashed single-use token backing the email
// verification and password reset flows. The raw token only ever travels in
// the outbound email.
type VerificationToken struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	TokenHash string           `gorm:"type:varchar(255);not null;index"`
	Type      VerificationType `gorm:"type:varchar(30);not null"`

	ExpiresAt time.Time
	UsedAt    *time.Time

	CreatedAt time.Time
}
