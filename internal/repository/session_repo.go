package repository

import (
	"context"
	"errors"
	"time"

	"tickwise/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindByID(ctx context.Context, sessionID uuid.UUID) (*entity.Session, error)
	FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error)
	Rotate(ctx context.Context, sessionID uuid.UUID, successor *entity.Session) (rotated bool, err error)
	Revoke(ctx context.Context, sessionID uuid.UUID) error
	RevokeByTokenHash(ctx context.Context, hash string) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) error
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error)
	CleanupExpired(ctx context.Context) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepository) FindByID(ctx context.Context, sessionID uuid.UUID) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

// FindByTokenHash excludes revoked sessions but deliberately returns used and
// expired rows: the caller distinguishes "expired" from "replayed" and the
// replay path depends on seeing the is_used flag.
func (r *sessionRepository) FindByTokenHash(ctx context.Context, hash string) (*entity.Session, error) {
	var session entity.Session
	err := r.db.WithContext(ctx).
		Where("refresh_token_hash = ? AND is_revoked = false", hash).
		First(&session).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &session, err
}

// Rotate marks the session used and inserts its successor inside one
// transaction, so a crash between the two cannot leave a redeemed token
// without a replacement chain. The conditional UPDATE guarantees that of two
// concurrent redemptions exactly one rotates; the loser sees rotated=false.
func (r *sessionRepository) Rotate(ctx context.Context, sessionID uuid.UUID, successor *entity.Session) (bool, error) {
	rotated := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&entity.Session{}).
			Where("id = ? AND is_used = false AND is_revoked = false", sessionID).
			Updates(map[string]any{
				"is_used":      true,
				"used_at":      &now,
				"last_used_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(successor).Error; err != nil {
			return err
		}
		rotated = true
		return nil
	})
	return rotated, err
}

func (r *sessionRepository) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("id = ? AND is_revoked = false", sessionID).
		Updates(map[string]any{"is_revoked": true, "revoked_at": &now}).
		Error
}

// RevokeByTokenHash is a no-op for unknown or already-revoked tokens so that
// logout stays idempotent and leaks nothing about token state.
func (r *sessionRepository) RevokeByTokenHash(ctx context.Context, hash string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("refresh_token_hash = ? AND is_revoked = false", hash).
		Updates(map[string]any{"is_revoked": true, "revoked_at": &now}).
		Error
}

func (r *sessionRepository) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Session{}).
		Where("user_id = ? AND is_revoked = false", userID).
		Updates(map[string]any{"is_revoked": true, "revoked_at": &now}).
		Error
}

func (r *sessionRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	var sessions []entity.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_revoked = false AND is_used = false AND expires_at > ?", userID, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) CleanupExpired(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&entity.Session{}).
		Error
}
