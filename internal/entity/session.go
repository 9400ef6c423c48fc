package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session is one row per issued refresh token, stored only as a hash.
// A session transitions is_used false -> true exactly once, when its token is
// redeemed for a successor pair; is_revoked is orthogonal and settable from
// any non-terminal state.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	RefreshTokenHash string `gorm:"type:varchar(255);uniqueIndex;not null"`

	DeviceInfo datatypes.JSON

	IsRevoked bool `gorm:"default:false;not null"`
	RevokedAt *time.Time

	IsUsed bool `gorm:"default:false;not null"`
	UsedAt *time.Time

	LastUsedAt time.Time
	CreatedAt  time.Time
	ExpiresAt  time.Time `gorm:"index;not null"`
}
