package repository

import (
	"context"
	"time"

	"tickwise/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BackupCodeRepository interface {
	ReplaceAll(ctx context.Context, userID uuid.UUID, codeHashes []string) error
	ListUnused(ctx context.Context, userID uuid.UUID) ([]entity.MFABackupCode, error)
	Consume(ctx context.Context, codeID uuid.UUID) (consumed bool, err error)
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
	CountUnused(ctx context.Context, userID uuid.UUID) (int64, error)
}

type backupCodeRepository struct {
	db *gorm.DB
}

func NewBackupCodeRepository(db *gorm.DB) BackupCodeRepository {
	return &backupCodeRepository{db: db}
}

// ReplaceAll swaps the user's batch wholesale; codes are never appended to an
// existing batch.
func (r *backupCodeRepository) ReplaceAll(ctx context.Context, userID uuid.UUID, codeHashes []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entity.MFABackupCode{}).Error; err != nil {
			return err
		}
		codes := make([]entity.MFABackupCode, 0, len(codeHashes))
		for _, hash := range codeHashes {
			codes = append(codes, entity.MFABackupCode{UserID: userID, CodeHash: hash})
		}
		if len(codes) == 0 {
			return nil
		}
		return tx.Create(&codes).Error
	})
}

func (r *backupCodeRepository) ListUnused(ctx context.Context, userID uuid.UUID) ([]entity.MFABackupCode, error) {
	var codes []entity.MFABackupCode
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_used = false", userID).
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Consume marks a code used at most once; the conditional WHERE makes
// concurrent redemptions of the same code race to a single winner.
func (r *backupCodeRepository) Consume(ctx context.Context, codeID uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.MFABackupCode{}).
		Where("id = ? AND is_used = false", codeID).
		Updates(map[string]any{"is_used": true, "used_at": &now})
	return result.RowsAffected > 0, result.Error
}

func (r *backupCodeRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&entity.MFABackupCode{}).
		Error
}

func (r *backupCodeRepository) CountUnused(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.MFABackupCode{}).
		Where("user_id = ? AND is_used = false", userID).
		Count(&count).Error
	return count, err
}
