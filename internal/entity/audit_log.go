package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditSignup             AuditAction = "signup"
	AuditEmailVerified      AuditAction = "email_verified"
	AuditLogin              AuditAction = "login"
	AuditLoginFailed        AuditAction = "login_failed"
	AuditLoginMFASuccess    AuditAction = "login_mfa_success"
	AuditLoginMFAFailed     AuditAction = "login_mfa_failed"
	AuditLoginMFABackupCode AuditAction = "login_mfa_backup_code_used"
	AuditLogout             AuditAction = "logout"
	AuditMFAEnabled         AuditAction = "mfa_enabled"
	AuditMFADisabled        AuditAction = "mfa_disabled"
	AuditBackupCodesRenewed AuditAction = "mfa_backup_codes_regenerated"
	AuditPasswordResetStart AuditAction = "password_reset_requested"
	AuditPasswordResetDone  AuditAction = "password_reset_completed"
	AuditSessionRevoked     AuditAction = "session_revoked"
	AuditTokenReuseDetected AuditAction = "token_reuse_detected"
	AuditAccountLocked      AuditAction = "account_locked"
	AuditAccountUnlocked    AuditAction = "account_unlocked"
	AuditAccountDeleted     AuditAction = "account_deleted"
)

// AuditLog rows are append-only. They are never mutated after creation except
// for anonymization when the owning account is deleted.
type AuditLog struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	// UserID is nullable so anonymous failures (unknown email) still leave a
	// record of the abuse signal without pointing at an account.
	UserID *uuid.UUID `gorm:"type:uuid;index"`

	Action AuditAction `gorm:"type:varchar(100);not null;index"`

	IPAddress *string `gorm:"type:varchar(45)"`
	UserAgent *string `gorm:"type:text"`

	Metadata datatypes.JSON

	Success bool `gorm:"default:true;not null"`

	CreatedAt time.Time `gorm:"index"`
}
