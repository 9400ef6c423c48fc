package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tickwise/internal/entity"
	"tickwise/internal/repository"
	"tickwise/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// dummyPasswordHash is verified against when no account matches the submitted
// email, so the unknown-user path costs the same as a real mismatch.
const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

type AuthService struct {
	users         repository.UserRepository
	sessions      repository.SessionRepository
	verifications repository.VerificationTokenRepository
	backupCodes   repository.BackupCodeRepository
	auditLogs     repository.AuditLogRepository

	emailSender  EmailSender
	passwordHash PasswordHasher
	accessTokens AccessTokenIssuer
	mfaTokens    MFATokenIssuer
	mfaProvider  MFAProvider
	secretCipher SecretCipher
	mfaLimiter   *MFALimiter
	clock        Clock
	logger       *logrus.Logger
	config       AuthConfig
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	verifications repository.VerificationTokenRepository,
	backupCodes repository.BackupCodeRepository,
	auditLogs repository.AuditLogRepository,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	accessTokens AccessTokenIssuer,
	mfaTokens MFATokenIssuer,
	mfaProvider MFAProvider,
	secretCipher SecretCipher,
	mfaLimiter *MFALimiter,
	clock Clock,
	logger *logrus.Logger,
	config AuthConfig,
) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		backupCodes:   backupCodes,
		auditLogs:     auditLogs,
		emailSender:   emailSender,
		passwordHash:  passwordHash,
		accessTokens:  accessTokens,
		mfaTokens:     mfaTokens,
		mfaProvider:   mfaProvider,
		secretCipher:  secretCipher,
		mfaLimiter:    mfaLimiter,
		clock:         clock,
		logger:        logger,
		config:        config,
	}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.EmailVerified {
			return ErrEmailAlreadyRegistered
		}
		// Unverified re-registration just resends the verification mail.
		return s.sendEmailVerification(ctx, existing)
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return err
	}

	user := &entity.User{
		Email:        email,
		PasswordHash: &hash,
		Role:         entity.UserRoleUser,
		IsActive:     true,
	}
	if name := strings.TrimSpace(input.FullName); name != "" {
		user.FullName = &name
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}

	s.audit(ctx, &user.ID, entity.AuditSignup, input.Client, true, map[string]any{"email": email})
	return s.sendEmailVerification(ctx, user)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidInput
	}
	verification, err := s.verifications.FindValid(ctx, utils.HashToken(token), entity.EmailVerify)
	if err != nil {
		return err
	}
	if verification == nil {
		return ErrInvalidToken
	}

	consumed, err := s.verifications.Consume(ctx, verification.ID)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidToken
	}

	if err := s.users.SetEmailVerified(ctx, verification.UserID); err != nil {
		return err
	}
	s.audit(ctx, &verification.UserID, entity.AuditEmailVerified, ClientInfo{}, true, nil)
	return nil
}

// Login verifies credentials and drives the lockout state machine. The
// rejection error is identical for unknown email, locked account and wrong
// password; only the audit trail distinguishes them.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(input.Email) == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || user.PasswordHash == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		s.audit(ctx, nil, entity.AuditLoginFailed, input.Client, false, map[string]any{"email": email, "reason": "user_not_found"})
		return nil, ErrInvalidCredentials
	}

	if user.IsLocked {
		if user.LockedUntil != nil && user.LockedUntil.After(s.now()) {
			s.audit(ctx, &user.ID, entity.AuditLoginFailed, input.Client, false, map[string]any{"reason": "account_locked"})
			return nil, ErrInvalidCredentials
		}
		// Lock window elapsed: lift it lazily and start a fresh counter.
		if _, err := s.users.ClearExpiredLock(ctx, user.ID, s.now()); err != nil {
			return nil, err
		}
		user.IsLocked = false
		user.LockedUntil = nil
		user.FailedLoginAttempts = 0
	}

	if !s.passwordHash.Verify(*user.PasswordHash, input.Password) {
		locked, err := s.users.RecordLoginFailure(ctx, user.ID, s.maxFailedLogins(), s.lockoutDuration())
		if err != nil {
			return nil, err
		}
		if locked {
			s.logger.WithField("user_id", user.ID).Warn("account locked after repeated login failures")
			s.audit(ctx, &user.ID, entity.AuditAccountLocked, input.Client, false, nil)
		}
		s.audit(ctx, &user.ID, entity.AuditLoginFailed, input.Client, false, map[string]any{"reason": "invalid_password"})
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ResetLoginFailures(ctx, user.ID); err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if user.MFAEnabled {
		// Password accepted but no session yet; the client must come back
		// through LoginWithMFA holding this token.
		mfaToken, expiresIn, err := s.mfaTokens.IssueMFAToken(user.ID.String())
		if err != nil {
			return nil, err
		}
		return &LoginResult{
			MFARequired:       true,
			MFAToken:          mfaToken,
			MFATokenExpiresIn: int64(expiresIn.Seconds()),
		}, nil
	}

	if err := s.users.SetLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}

	result, err := s.createSessionAndTokens(ctx, user, input.DeviceName, input.Client)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &user.ID, entity.AuditLogin, input.Client, true, nil)
	return result, nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DeleteAccount soft-deletes the caller: PII is anonymized in place, every
// session is revoked and prior audit rows are stripped of request metadata.
// The transition is terminal.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID, password string, client ClientInfo) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.PasswordHash == nil || !s.passwordHash.Verify(*user.PasswordHash, password) {
		s.audit(ctx, &user.ID, entity.AuditLoginFailed, client, false, map[string]any{"reason": "delete_account_password_mismatch"})
		return ErrInvalidCredentials
	}

	if err := s.sessions.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.backupCodes.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.users.SoftDeleteAnonymize(ctx, userID, s.now()); err != nil {
		return err
	}
	if err := s.auditLogs.AnonymizeByUser(ctx, userID); err != nil {
		return err
	}

	s.audit(ctx, &userID, entity.AuditAccountDeleted, ClientInfo{}, true, nil)
	s.logger.WithField("user_id", userID).Info("account soft-deleted")
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]entity.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *AuthService) UnlockUser(ctx context.Context, userID uuid.UUID, client ClientInfo) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.users.Unlock(ctx, userID); err != nil {
		return err
	}
	s.audit(ctx, &userID, entity.AuditAccountUnlocked, client, true, nil)
	return nil
}

func (s *AuthService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RevokeAllByUser(ctx, userID)
}

func (s *AuthService) createSessionAndTokens(
	ctx context.Context,
	user *entity.User,
	deviceName string,
	client ClientInfo,
) (*LoginResult, error) {
	refreshToken, refreshHash, refreshExpiry, err := s.buildRefreshToken()
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		DeviceInfo:       deviceInfoJSON(deviceName, client),
		LastUsedAt:       s.now(),
		ExpiresAt:        refreshExpiry,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := s.accessTokens.IssueAccessToken(user.ID.String(), string(user.Role), session.ID.String())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:      accessToken,
		ExpiresIn:        int64(expiresIn.Seconds()),
		RefreshToken:     refreshToken,
		RefreshExpiresIn: int64(refreshExpiry.Sub(s.now()).Seconds()),
	}, nil
}

func (s *AuthService) sendEmailVerification(ctx context.Context, user *entity.User) error {
	if s.emailSender == nil {
		return nil
	}
	token, err := s.createVerificationToken(ctx, user.ID, entity.EmailVerify, s.verificationTokenTTL())
	if err != nil {
		return err
	}
	if err := s.emailSender.SendVerificationEmail(ctx, user.Email, token); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("verification email dispatch failed")
	}
	return nil
}

func (s *AuthService) createVerificationToken(
	ctx context.Context,
	userID uuid.UUID,
	tokenType entity.VerificationType,
	ttl time.Duration,
) (string, error) {
	rawToken, err := utils.GenerateRandomToken(32)
	if err != nil {
		return "", err
	}
	verification := &entity.VerificationToken{
		UserID:    userID,
		TokenHash: utils.HashToken(rawToken),
		Type:      tokenType,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.verifications.Create(ctx, verification); err != nil {
		return "", err
	}
	return rawToken, nil
}

func (s *AuthService) buildRefreshToken() (string, string, time.Time, error) {
	rawToken, err := utils.GenerateRandomToken(48)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return rawToken, utils.HashToken(rawToken), s.now().Add(s.refreshTokenTTL()), nil
}

// audit appends a record to the audit sink. Sink failures are logged but
// never fail the calling operation.
func (s *AuthService) audit(
	ctx context.Context,
	userID *uuid.UUID,
	action entity.AuditAction,
	client ClientInfo,
	success bool,
	metadata map[string]any,
) {
	if s.auditLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		if bytes, err := json.Marshal(metadata); err == nil {
			payload = datatypes.JSON(bytes)
		}
	}
	log := &entity.AuditLog{
		UserID:    userID,
		Action:    action,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Metadata:  payload,
		Success:   success,
	}
	if err := s.auditLogs.Append(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", action).Error("audit append failed")
	}
}

func deviceInfoJSON(deviceName string, client ClientInfo) datatypes.JSON {
	info := map[string]any{}
	if deviceName != "" {
		info["device_name"] = deviceName
	}
	if client.IPAddress != nil {
		info["ip_address"] = *client.IPAddress
	}
	if client.UserAgent != nil {
		info["user_agent"] = *client.UserAgent
	}
	bytes, err := json.Marshal(info)
	if err != nil {
		return nil
	}
	return datatypes.JSON(bytes)
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *AuthService) maxFailedLogins() int {
	if s.config.MaxFailedLogins > 0 {
		return s.config.MaxFailedLogins
	}
	return 5
}

func (s *AuthService) lockoutDuration() time.Duration {
	if s.config.LockoutDuration > 0 {
		return s.config.LockoutDuration
	}
	return 30 * time.Minute
}

func (s *AuthService) backupCodeCount() int {
	if s.config.BackupCodeCount > 0 {
		return s.config.BackupCodeCount
	}
	return 10
}

func (s *AuthService) verificationTokenTTL() time.Duration {
	if s.config.VerificationTokenTTL > 0 {
		return s.config.VerificationTokenTTL
	}
	return 24 * time.Hour
}

func (s *AuthService) resetTokenTTL() time.Duration {
	if s.config.ResetTokenTTL > 0 {
		return s.config.ResetTokenTTL
	}
	return time.Hour
}

func (s *AuthService) refreshTokenTTL() time.Duration {
	if s.config.RefreshTokenTTL > 0 {
		return s.config.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}
