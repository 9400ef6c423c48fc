package service

import (
	"context"
	"strings"

	"tickwise/internal/entity"
	"tickwise/internal/utils"

	"github.com/google/uuid"
)

// Refresh rotates a refresh token: the presented token is marked used and a
// successor session is issued. Presenting an already-used token is treated as
// theft evidence and revokes the holder's entire session fleet.
func (s *AuthService) Refresh(ctx context.Context, rawToken string, client ClientInfo) (*LoginResult, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.sessions.FindByTokenHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidToken
	}
	if session.ExpiresAt.Before(s.now()) {
		return nil, ErrTokenExpired
	}
	if session.IsUsed {
		return nil, s.handleTokenReuse(ctx, session, client)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}

	refreshToken, refreshHash, refreshExpiry, err := s.buildRefreshToken()
	if err != nil {
		return nil, err
	}
	successor := &entity.Session{
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		DeviceInfo:       session.DeviceInfo,
		LastUsedAt:       s.now(),
		ExpiresAt:        refreshExpiry,
	}

	rotated, err := s.sessions.Rotate(ctx, session.ID, successor)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Lost the rotation race: a concurrent redeemer spent this token
		// first, which is indistinguishable from replay.
		return nil, s.handleTokenReuse(ctx, session, client)
	}

	accessToken, expiresIn, err := s.accessTokens.IssueAccessToken(user.ID.String(), string(user.Role), successor.ID.String())
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

// handleTokenReuse implements the replay response: every session of the owner
// is revoked, so both the legitimate holder and the thief must reauthenticate.
func (s *AuthService) handleTokenReuse(ctx context.Context, session *entity.Session, client ClientInfo) error {
	s.logger.WithFields(map[string]any{
		"user_id":    session.UserID,
		"session_id": session.ID,
	}).Warn("refresh token replay detected, revoking all sessions")

	if err := s.sessions.RevokeAllByUser(ctx, session.UserID); err != nil {
		return err
	}
	s.audit(ctx, &session.UserID, entity.AuditTokenReuseDetected, client, false, map[string]any{
		"session_id": session.ID.String(),
	})
	return ErrTokenReused
}

// Logout revokes the session behind the presented refresh token. Unknown and
// already-revoked tokens succeed silently; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, rawToken string, client ClientInfo) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	hash := utils.HashToken(rawToken)
	session, err := s.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.RevokeByTokenHash(ctx, hash); err != nil {
		return err
	}
	s.audit(ctx, &session.UserID, entity.AuditLogout, client, true, nil)
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, client ClientInfo) error {
	if err := s.sessions.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	s.audit(ctx, &userID, entity.AuditLogout, client, true, map[string]any{"scope": "all"})
	return nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]entity.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID)
}

// RevokeSession revokes one session owned by the caller. Sessions belonging
// to other users are reported as not found rather than forbidden.
func (s *AuthService) RevokeSession(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, client ClientInfo) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil || session.UserID != userID {
		return ErrSessionNotFound
	}
	if session.IsRevoked {
		return ErrSessionAlreadyRevoked
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.audit(ctx, &userID, entity.AuditSessionRevoked, client, true, map[string]any{
		"session_id": sessionID.String(),
	})
	return nil
}

// RequestPasswordReset always reports success to the caller. Whether the
// email maps to an account is only visible in the audit trail.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, client ClientInfo) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return nil
	}

	token, err := s.createVerificationToken(ctx, user.ID, entity.PasswordReset, s.resetTokenTTL())
	if err != nil {
		return err
	}
	if s.emailSender != nil {
		if err := s.emailSender.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
			s.logger.WithError(err).WithField("user_id", user.ID).Error("reset email dispatch failed")
		}
	}
	s.audit(ctx, &user.ID, entity.AuditPasswordResetStart, client, true, nil)
	return nil
}

// ResetPassword redeems a single-use reset token, replaces the password and
// revokes every session so stolen refresh tokens die with the old password.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, newPassword string, client ClientInfo) error {
	if strings.TrimSpace(rawToken) == "" || strings.TrimSpace(newPassword) == "" {
		return ErrInvalidInput
	}

	verification, err := s.verifications.FindValid(ctx, utils.HashToken(rawToken), entity.PasswordReset)
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

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, verification.UserID, hash); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllByUser(ctx, verification.UserID); err != nil {
		return err
	}

	s.audit(ctx, &verification.UserID, entity.AuditPasswordResetDone, client, true, nil)
	return nil
}
