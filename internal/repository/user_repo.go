package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickwise/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetMFASecret(ctx context.Context, userID uuid.UUID, encryptedSecret *string) error
	SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
	ClearMFA(ctx context.Context, userID uuid.UUID) error
	SetLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, maxAttempts int, lockFor time.Duration) (locked bool, err error)
	ResetLoginFailures(ctx context.Context, userID uuid.UUID) error
	ClearExpiredLock(ctx context.Context, userID uuid.UUID, now time.Time) (cleared bool, err error)
	Unlock(ctx context.Context, userID uuid.UUID) error
	SoftDeleteAnonymize(ctx context.Context, userID uuid.UUID, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]entity.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL", email).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *userRepository) Update(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("email_verified", true).
		Error
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash).
		Error
}

func (r *userRepository) SetMFASecret(ctx context.Context, userID uuid.UUID, encryptedSecret *string) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("mfa_secret", encryptedSecret).
		Error
}

func (r *userRepository) SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("mfa_enabled", enabled).
		Error
}

// ClearMFA disables MFA, drops the stored secret and deletes the backup-code
// batch in one transaction, so no order of observation sees MFA enabled with
// codes missing or vice versa.
func (r *userRepository) ClearMFA(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&entity.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{"mfa_enabled": false, "mfa_secret": nil}).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&entity.MFABackupCode{}).Error
	})
}

func (r *userRepository) SetLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("last_login_at", &at).
		Error
}

// RecordLoginFailure increments the failure counter and, when the threshold
// is reached, flips the lock flag and stamps locked_until in the same UPDATE.
// Concurrent wrong-password attempts each count because the increment is
// evaluated against the stored value, not a value read earlier.
func (r *userRepository) RecordLoginFailure(ctx context.Context, userID uuid.UUID, maxAttempts int, lockFor time.Duration) (bool, error) {
	lockedUntil := time.Now().Add(lockFor)
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ? AND deleted_at IS NULL", userID).
		Updates(map[string]any{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"is_locked":             gorm.Expr("failed_login_attempts + 1 >= ?", maxAttempts),
			"locked_until":          gorm.Expr("CASE WHEN failed_login_attempts + 1 >= ? THEN ?::timestamptz ELSE locked_until END", maxAttempts, lockedUntil),
		}).Error
	if err != nil {
		return false, fmt.Errorf("record login failure: %w", err)
	}

	var user entity.User
	err = r.db.WithContext(ctx).
		Select("is_locked").
		Where("id = ?", userID).
		First(&user).Error
	return user.IsLocked, err
}

func (r *userRepository) ResetLoginFailures(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("failed_login_attempts", 0).
		Error
}

// ClearExpiredLock lifts a lockout only once locked_until has elapsed. The
// conditional WHERE makes concurrent attempts idempotent.
func (r *userRepository) ClearExpiredLock(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ? AND is_locked = true AND locked_until IS NOT NULL AND locked_until <= ?", userID, now).
		Updates(map[string]any{
			"is_locked":             false,
			"locked_until":          nil,
			"failed_login_attempts": 0,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *userRepository) Unlock(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_locked":             false,
			"locked_until":          nil,
			"failed_login_attempts": 0,
		}).Error
}

// SoftDeleteAnonymize mutates PII in place and stamps deleted_at. The row is
// kept so foreign keys and audit history stay intact; the email tombstone
// frees the address for re-registration.
func (r *userRepository) SoftDeleteAnonymize(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ? AND deleted_at IS NULL", userID).
		Updates(map[string]any{
			"email":         fmt.Sprintf("deleted-%s@anonymized.invalid", userID),
			"password_hash": nil,
			"full_name":     nil,
			"mfa_secret":    nil,
			"mfa_enabled":   false,
			"is_active":     false,
			"deleted_at":    &at,
		}).Error
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]entity.User, error) {
	var users []entity.User
	query := r.db.WithContext(ctx).Where("deleted_at IS NULL").Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
