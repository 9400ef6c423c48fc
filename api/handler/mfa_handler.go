package handler

import (
	"errors"
	"net/http"

	"tickwise/api/middleware"
	"tickwise/internal/dto"

	"github.com/labstack/echo/v4"
)

// MFA management for an authenticated user. Enablement is three-phase: the
// enable call returns the secret and backup codes, and the account only
// starts requiring codes after confirm succeeds.

func (h *AuthHandler) EnableMFA(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	setup, err := h.Service.EnableMFA(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MFAEnableResponse{
		Secret:      setup.Secret,
		QRCodeURI:   setup.QRCodeURI,
		BackupCodes: setup.BackupCodes,
	})
}

func (h *AuthHandler) ConfirmMFA(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.MFAConfirmRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ConfirmMFA(c.Request().Context(), userID, req.Code, clientInfo(c)); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) DisableMFA(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.MFADisableRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.DisableMFA(c.Request().Context(), userID, req.Password, req.Code, clientInfo(c)); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) MFAStatus(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	status, err := h.Service.MFAStatus(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MFAStatusResponse{
		Enabled:              status.Enabled,
		BackupCodesRemaining: status.BackupCodesRemaining,
	})
}

func (h *AuthHandler) RegenerateBackupCodes(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.BackupCodesRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	codes, err := h.Service.RegenerateBackupCodes(c.Request().Context(), userID, req.Code, clientInfo(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.BackupCodesResponse{BackupCodes: codes})
}
