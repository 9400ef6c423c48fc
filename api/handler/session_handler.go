package handler

import (
	"errors"
	"net/http"

	"tickwise/api/middleware"
	"tickwise/internal/dto"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (h *AuthHandler) ListSessions(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	sessions, err := h.Service.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	current := ""
	if sessionID, ok := middleware.SessionIDFromContext(c); ok {
		current = sessionID.String()
	}
	return c.JSON(http.StatusOK, dto.SessionResponsesFromEntities(sessions, current))
}

func (h *AuthHandler) RevokeSession(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid session id"))
	}
	if err := h.Service.RevokeSession(c.Request().Context(), userID, sessionID, clientInfo(c)); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
