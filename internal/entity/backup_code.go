package entity

import (
	"time"

	"github.com/google/uuid"
)

// MFABackupCode is a single-use fallback credential created in a batch when
// MFA is enabled. The batch is deleted wholesale when MFA is disabled.
type MFABackupCode struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:ix_backup_codes_user_used"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	CodeHash string `gorm:"type:varchar(255);not null"`

	IsUsed bool `gorm:"default:false;not null;index:ix_backup_codes_user_used"`
	UsedAt *time.Time

	CreatedAt time.Time
}
