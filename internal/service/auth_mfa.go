package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"tickwise/internal/entity"

	"github.com/google/uuid"
)

// LoginWithMFA completes a pending login by redeeming the MFA token together
// with either a TOTP code or a backup code. The caller cannot tell which path
// failed; both reject with the same generic error.
func (s *AuthService) LoginWithMFA(ctx context.Context, input LoginMFAInput) (*LoginResult, error) {
	if strings.TrimSpace(input.MFAToken) == "" || strings.TrimSpace(input.Code) == "" {
		return nil, ErrInvalidInput
	}

	rawUserID, err := s.mfaTokens.ParseMFAToken(input.MFAToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || !user.MFAEnabled {
		return nil, ErrInvalidToken
	}

	if !s.allowMFAAttempt(user.ID) {
		return nil, ErrTooManyAttempts
	}

	secret, err := s.decryptMFASecret(user)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(input.Code)
	if isTOTPFormat(code) && s.mfaProvider.ValidateCode(secret, code) {
		return s.finishMFALogin(ctx, user, input, entity.AuditLoginMFASuccess)
	}

	// Not a valid TOTP code: try it as a backup code. Backup codes are
	// case-folded before hashing, so fold the candidate the same way.
	matched, err := s.redeemBackupCode(ctx, user.ID, code)
	if err != nil {
		return nil, err
	}
	if matched {
		s.logger.WithField("user_id", user.ID).Warn("backup code consumed, prompt regeneration")
		return s.finishMFALogin(ctx, user, input, entity.AuditLoginMFABackupCode)
	}

	s.audit(ctx, &user.ID, entity.AuditLoginMFAFailed, input.Client, false, nil)
	return nil, ErrInvalidMFACode
}

func (s *AuthService) finishMFALogin(
	ctx context.Context,
	user *entity.User,
	input LoginMFAInput,
	action entity.AuditAction,
) (*LoginResult, error) {
	if err := s.users.SetLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, err
	}
	result, err := s.createSessionAndTokens(ctx, user, input.DeviceName, input.Client)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, &user.ID, action, input.Client, true, nil)
	return result, nil
}

func (s *AuthService) redeemBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	candidate := strings.ToUpper(code)
	codes, err := s.backupCodes.ListUnused(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, backup := range codes {
		if !s.passwordHash.Verify(backup.CodeHash, candidate) {
			continue
		}
		consumed, err := s.backupCodes.Consume(ctx, backup.ID)
		if err != nil {
			return false, err
		}
		// A lost consume race means someone else just spent this code;
		// treat it as no match rather than double-accepting.
		return consumed, nil
	}
	return false, nil
}

// EnableMFA starts the three-phase enablement. The encrypted secret and the
// hashed backup-code batch are persisted here, but mfa_enabled stays false
// until ConfirmMFA verifies a first code against the pending secret.
func (s *AuthService) EnableMFA(ctx context.Context, userID uuid.UUID) (*MFASetup, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := s.mfaProvider.GenerateSecret()
	if err != nil {
		return nil, err
	}
	qrURI, err := s.mfaProvider.QRCodeURL(user.Email, s.config.MFAIssuer, secret)
	if err != nil {
		return nil, err
	}

	backupCodes, err := generateBackupCodes(s.backupCodeCount())
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(backupCodes))
	for _, code := range backupCodes {
		hash, err := s.passwordHash.Hash(code)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if err := s.backupCodes.ReplaceAll(ctx, userID, hashes); err != nil {
		return nil, err
	}

	encrypted, err := s.secretCipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetMFASecret(ctx, userID, &encrypted); err != nil {
		return nil, err
	}

	return &MFASetup{Secret: secret, QRCodeURI: qrURI, BackupCodes: backupCodes}, nil
}

// ConfirmMFA flips mfa_enabled after verifying one code against the pending
// secret. Confirming an already-enabled account is a no-op so concurrent
// confirmations are safe to retry.
func (s *AuthService) ConfirmMFA(ctx context.Context, userID uuid.UUID, code string, client ClientInfo) error {
	if strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.MFAEnabled {
		return nil
	}
	if user.MFASecret == nil {
		return ErrMFASetupNotStarted
	}
	if !s.allowMFAAttempt(userID) {
		return ErrTooManyAttempts
	}

	secret, err := s.secretCipher.Decrypt(*user.MFASecret)
	if err != nil {
		return err
	}
	if !s.mfaProvider.ValidateCode(secret, strings.TrimSpace(code)) {
		return ErrInvalidMFACode
	}

	if err := s.users.SetMFAEnabled(ctx, userID, true); err != nil {
		return err
	}
	s.audit(ctx, &userID, entity.AuditMFAEnabled, client, true, nil)

	if s.emailSender != nil {
		if err := s.emailSender.SendMFAEnabledEmail(ctx, user.Email); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("mfa-enabled email dispatch failed")
		}
	}
	return nil
}

// DisableMFA requires both the account password and a live TOTP code, then
// clears the secret and deletes the backup-code batch atomically.
func (s *AuthService) DisableMFA(ctx context.Context, userID uuid.UUID, password string, code string, client ClientInfo) error {
	if strings.TrimSpace(password) == "" || strings.TrimSpace(code) == "" {
		return ErrInvalidInput
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.MFAEnabled {
		return ErrMFANotEnabled
	}
	if user.PasswordHash == nil || !s.passwordHash.Verify(*user.PasswordHash, password) {
		return ErrInvalidCredentials
	}
	if !s.allowMFAAttempt(userID) {
		return ErrTooManyAttempts
	}

	secret, err := s.decryptMFASecret(user)
	if err != nil {
		return err
	}
	if !s.mfaProvider.ValidateCode(secret, strings.TrimSpace(code)) {
		return ErrInvalidMFACode
	}

	if err := s.users.ClearMFA(ctx, userID); err != nil {
		return err
	}
	s.audit(ctx, &userID, entity.AuditMFADisabled, client, true, nil)
	return nil
}

func (s *AuthService) MFAStatus(ctx context.Context, userID uuid.UUID) (*MFAStatus, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	remaining, err := s.backupCodes.CountUnused(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MFAStatus{Enabled: user.MFAEnabled, BackupCodesRemaining: remaining}, nil
}

// RegenerateBackupCodes replaces the batch wholesale; codes are never topped
// up automatically, so this is the only way to recover spent codes.
func (s *AuthService) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, code string, client ClientInfo) ([]string, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrInvalidInput
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.MFAEnabled {
		return nil, ErrMFANotEnabled
	}
	if !s.allowMFAAttempt(userID) {
		return nil, ErrTooManyAttempts
	}

	secret, err := s.decryptMFASecret(user)
	if err != nil {
		return nil, err
	}
	if !s.mfaProvider.ValidateCode(secret, strings.TrimSpace(code)) {
		return nil, ErrInvalidMFACode
	}

	backupCodes, err := generateBackupCodes(s.backupCodeCount())
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(backupCodes))
	for _, c := range backupCodes {
		hash, err := s.passwordHash.Hash(c)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if err := s.backupCodes.ReplaceAll(ctx, userID, hashes); err != nil {
		return nil, err
	}

	s.audit(ctx, &userID, entity.AuditBackupCodesRenewed, client, true, nil)
	return backupCodes, nil
}

// decryptMFASecret enforces the invariant that an MFA-enabled account has a
// stored secret. A missing secret is data corruption and must alert
// operators, not degrade into a retryable login failure.
func (s *AuthService) decryptMFASecret(user *entity.User) (string, error) {
	if user.MFASecret == nil {
		s.logger.WithField("user_id", user.ID).Error("mfa enabled but secret missing")
		return "", ErrMFASecretMissing
	}
	return s.secretCipher.Decrypt(*user.MFASecret)
}

func (s *AuthService) allowMFAAttempt(userID uuid.UUID) bool {
	if s.mfaLimiter == nil {
		return true
	}
	return s.mfaLimiter.Allow(userID.String())
}

func isTOTPFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// generateBackupCodes returns codes in the form XXXX-XXXX over uppercase hex.
// Only bcrypt hashes of the folded form are persisted.
func generateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		buffer := make([]byte, 4)
		if _, err := rand.Read(buffer); err != nil {
			return nil, err
		}
		raw := strings.ToUpper(hex.EncodeToString(buffer))
		codes = append(codes, fmt.Sprintf("%s-%s", raw[:4], raw[4:]))
	}
	return codes, nil
}
