package middleware

// identity.go holds the context keys set by JWTAuth and LoadAdmin and the
// helpers handlers use to read them back.

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/relief-coordination/internal/model"
    "github.com/iliyamo/relief-coordination/internal/service"
)

const (
    ctxClaims = "claims"
    ctxUserID = "user_id"
    ctxRole   = "role"
    ctxAdmin  = "admin"
)

// Claims returns the access token claims stored by JWTAuth, or nil.
func Claims(c echo.Context) *service.AccessClaims {
    cl, _ := c.Get(ctxClaims).(*service.AccessClaims)
    return cl
}

// CurrentAdmin returns the identity loaded by LoadAdmin.
func CurrentAdmin(c echo.Context) (model.AdminIdentity, bool) {
    a, ok := c.Get(ctxAdmin).(model.AdminIdentity)
    return a, ok
}

// AdminLoader is the part of the credential store LoadAdmin needs.
type AdminLoader interface {
    GetByID(ctx context.Context, id uint64) (model.AdminIdentity, error)
}

// LoadAdmin fetches the identity named by the token subject and rejects
// deactivated accounts, so deactivation takes effect before the access token
// expires. It must run after JWTAuth.
func LoadAdmin(admins AdminLoader) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            cl := Claims(c)
            if cl == nil {
                return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
            }
            id, err := cl.AdminID()
            if err != nil {
                return err
            }
            admin, err := admins.GetByID(c.Request().Context(), id)
            if errors.Is(err, model.ErrNotFound) || (err == nil && !admin.IsActive) {
                return model.ErrSessionExpired
            }
            if err != nil {
                return err
            }
            c.Set(ctxAdmin, admin)
            return next(c)
        }
    }
}

// userID returns the authenticated admin id as a string, or "anon".
func userID(c echo.Context) string {
    if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
        return s
    }
    return "anon"
}
