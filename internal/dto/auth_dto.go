package dto

import (
	"encoding/json"
	"time"

	"tickwise/internal/entity"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"omitempty,max=255"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceName string `json:"device_name" validate:"omitempty,max=100"`
}

type LoginMFARequest struct {
	MFAToken   string `json:"mfa_token" validate:"required"`
	Code       string `json:"code" validate:"required,min=6,max=12"`
	DeviceName string `json:"device_name" validate:"omitempty,max=100"`
}

type LoginResponse struct {
	AccessToken       string `json:"access_token,omitempty"`
	TokenType         string `json:"token_type,omitempty"`
	ExpiresIn         int64  `json:"expires_in,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	RefreshExpiresIn  int64  `json:"refresh_expires_in,omitempty"`
	MFARequired       bool   `json:"mfa_required,omitempty"`
	MFAToken          string `json:"mfa_token,omitempty"`
	MFATokenExpiresIn int64  `json:"mfa_token_expires_in,omitempty"`
}

type PasswordForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

type MFAEnableResponse struct {
	Secret      string   `json:"secret"`
	QRCodeURI   string   `json:"qr_code_uri"`
	BackupCodes []string `json:"backup_codes"`
}

type MFAConfirmRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type MFADisableRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

type MFAStatusResponse struct {
	Enabled              bool  `json:"enabled"`
	BackupCodesRemaining int64 `json:"backup_codes_remaining"`
}

type BackupCodesRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

type SessionResponse struct {
	ID         string          `json:"id"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
	LastUsedAt time.Time       `json:"last_used_at"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Current    bool            `json:"current"`
}

func SessionResponseFromEntity(session *entity.Session, currentSessionID string) SessionResponse {
	return SessionResponse{
		ID:         session.ID.String(),
		DeviceInfo: json.RawMessage(session.DeviceInfo),
		LastUsedAt: session.LastUsedAt,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
		Current:    session.ID.String() == currentSessionID,
	}
}

func SessionResponsesFromEntities(sessions []entity.Session, currentSessionID string) []SessionResponse {
	responses := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		responses = append(responses, SessionResponseFromEntity(&sessions[i], currentSessionID))
	}
	return responses
}

type UserResponse struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	FullName             string     `json:"full_name,omitempty"`
	Role                 string     `json:"role"`
	EmailVerified        bool       `json:"email_verified"`
	MFAEnabled           bool       `json:"mfa_enabled"`
	PaperTradingApproved bool       `json:"paper_trading_approved"`
	LiveTradingApproved  bool       `json:"live_trading_approved"`
	IsActive             bool       `json:"is_active"`
	IsLocked             bool       `json:"is_locked"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	response := UserResponse{
		ID:                   user.ID.String(),
		Email:                user.Email,
		Role:                 string(user.Role),
		EmailVerified:        user.EmailVerified,
		MFAEnabled:           user.MFAEnabled,
		PaperTradingApproved: user.PaperTradingApproved,
		LiveTradingApproved:  user.LiveTradingApproved,
		IsActive:             user.IsActive,
		IsLocked:             user.IsLocked,
		LastLoginAt:          user.LastLoginAt,
		CreatedAt:            user.CreatedAt,
		UpdatedAt:            user.UpdatedAt,
	}
	if user.FullName != nil {
		response.FullName = *user.FullName
	}
	return response
}

func UserResponsesFromEntities(users []entity.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, UserResponseFromEntity(&users[i]))
	}
	return responses
}
