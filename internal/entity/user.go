package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email string    `gorm:"type:varchar(255);uniqueIndex;not null"`

	PasswordHash  *string `gorm:"type:text"`
	EmailVerified bool    `gorm:"default:false;not null"`

	// MFASecret holds the TOTP secret encrypted at rest. It is written during
	// MFA setup but MFAEnabled only flips after the first code is confirmed.
	MFAEnabled bool    `gorm:"default:false;not null"`
	MFASecret  *string `gorm:"type:text"`

	FullName *string  `gorm:"type:varchar(255)"`
	Role     UserRole `gorm:"type:varchar(20);default:'user';not null"`

	PaperTradingApproved bool `gorm:"default:true;not null"`
	LiveTradingApproved  bool `gorm:"default:false;not null"`

	IsActive            bool `gorm:"default:true;not null"`
	IsLocked            bool `gorm:"default:false;not null"`
	FailedLoginAttempts int  `gorm:"default:0;not null"`
	LockedUntil         *time.Time
	LastLoginAt         *time.Time

	// DeletedAt marks a soft-deleted account. Deletion anonymizes PII in
	// place and is terminal; every live lookup filters on it.
	DeletedAt *time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
