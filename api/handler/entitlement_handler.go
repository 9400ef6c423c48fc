package handler

import (
	"errors"
	"net/http"

	"tickwise/api/middleware"
	"tickwise/internal/dto"
	"tickwise/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type EntitlementHandler struct {
	Service *service.EntitlementService
}

func NewEntitlementHandler(svc *service.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{Service: svc}
}

func (h *EntitlementHandler) MyEntitlements(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	entitlements := h.Service.Resolve(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, dto.EntitlementsResponseFromService(entitlements))
}

// AdminInvalidateEntitlements drops a user's cached entitlements. The billing
// webhook processor calls this after any subscription change.
func (h *EntitlementHandler) AdminInvalidateEntitlements(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.New("invalid user id"))
	}
	if err := h.Service.Invalidate(c.Request().Context(), userID); err != nil {
		return writeError(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}
