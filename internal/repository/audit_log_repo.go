package repository

import (
	"context"

	"tickwise/internal/entity"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLogRepository is the append-only audit sink. Entries are never read
// back for authorization decisions.
type AuditLogRepository interface {
	Append(ctx context.Context, log *entity.AuditLog) error
	AnonymizeByUser(ctx context.Context, userID uuid.UUID) error
}

type auditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(ctx context.Context, log *entity.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// AnonymizeByUser strips request metadata from a deleted account's history.
// This is the single permitted mutation of audit rows.
func (r *auditLogRepository) AnonymizeByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.AuditLog{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"ip_address": nil,
			"user_agent": nil,
			"metadata":   datatypes.JSON([]byte("{}")),
		}).Error
}
