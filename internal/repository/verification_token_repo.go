package repository

import (
	"context"
	"errors"
	"time"

	"tickwise/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *entity.VerificationToken) error
	FindValid(ctx context.Context, tokenHash string, tokenType entity.VerificationType) (*entity.VerificationToken, error)
	Consume(ctx context.Context, id uuid.UUID) (consumed bool, err error)
}

type verificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &verificationTokenRepository{db: db}
}

func (r *verificationTokenRepository) Create(ctx context.Context, t *entity.VerificationToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *verificationTokenRepository) FindValid(
	ctx context.Context,
	tokenHash string,
	tokenType entity.VerificationType,
) (*entity.VerificationToken, error) {
	var token entity.VerificationToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND type = ? AND used_at IS NULL AND expires_at > ?", tokenHash, tokenType, time.Now()).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}

// Consume enforces single use: the conditional WHERE lets exactly one caller
// redeem a token under concurrency.
func (r *verificationTokenRepository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.VerificationToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", &now)
	return result.RowsAffected > 0, result.Error
}
