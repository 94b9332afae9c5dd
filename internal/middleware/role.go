package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/model"
)

// RequireRole aborts with model.ErrForbidden unless the role claim stored by
// JWTAuth is one of roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
    allowed := make(map[model.Role]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, ok := c.Get(ctxRole).(model.Role)
            if !ok || !allowed[role] {
                return model.ErrForbidden
            }
            return next(c)
        }
    }
}
