package middleware

import (
	"net/http"

	"tickwise/internal/service"

	"github.com/labstack/echo/v4"
)

// RequireFeature gates a route on a boolean plan feature. Resolution never
// errors; users whose plan lacks the flag get 403 with the feature named.
func RequireFeature(entitlements *service.EntitlementService, feature string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := UserIDFromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			resolved := entitlements.Resolve(c.Request().Context(), userID)
			if err := resolved.RequireFeature(feature); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "feature not available on current plan")
			}
			return next(c)
		}
	}
}
